package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverytrack/engine/core/model"
)

func TestMemoryStoreGetDelivery(t *testing.T) {
	s := NewMemoryStore()
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusPending, CreatedAt: time.Now()})

	d, err := s.GetDelivery(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, d.Status)

	_, err = s.GetDelivery(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConditionalUpdateGuards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusPending, CreatedAt: time.Now()})

	courier := "c1"
	ok, err := s.ConditionalUpdateDelivery(ctx, "d1",
		DeliveryGuard{Status: model.StatusPending, CourierUnset: true},
		DeliveryUpdate{Status: model.StatusAssigned, CourierID: &courier})
	require.NoError(t, err)
	assert.True(t, ok)

	// Same guard again: the record is no longer PENDING.
	other := "c2"
	ok, err = s.ConditionalUpdateDelivery(ctx, "d1",
		DeliveryGuard{Status: model.StatusPending, CourierUnset: true},
		DeliveryUpdate{Status: model.StatusAssigned, CourierID: &other})
	require.NoError(t, err)
	assert.False(t, ok)

	d, err := s.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "c1", *d.CourierID)

	// Missing record is a silent non-match, not an error.
	ok, err = s.ConditionalUpdateDelivery(ctx, "ghost",
		DeliveryGuard{Status: model.StatusPending}, DeliveryUpdate{Status: model.StatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConditionalUpdateSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusPending, CreatedAt: time.Now()})

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		courier := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConditionalUpdateDelivery(ctx, "d1",
				DeliveryGuard{Status: model.StatusPending, CourierUnset: true},
				DeliveryUpdate{Status: model.StatusAssigned, CourierID: &courier})
			if err == nil && ok {
				wins <- courier
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	d, err := s.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], *d.CourierID)
}

func TestFindOldestPendingUnassigned(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.FindOldestPendingUnassigned(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courier := "c9"
	s.PutDelivery(model.Delivery{ID: "d2", Status: model.StatusPending, CreatedAt: base.Add(time.Minute)})
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusPending, CreatedAt: base})
	s.PutDelivery(model.Delivery{ID: "d0", Status: model.StatusAssigned, CourierID: &courier, CreatedAt: base.Add(-time.Hour)})

	got, err = s.FindOldestPendingUnassigned(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "d1", got.ID)
}

func TestListAvailableCouriersDerived(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutCourier(model.Courier{ID: "c1", Name: "Ana"})
	s.PutCourier(model.Courier{ID: "c2", Name: "Bruno"})

	free, err := s.ListAvailableCouriers(ctx)
	require.NoError(t, err)
	assert.Len(t, free, 2)

	c1 := "c1"
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusInTransit, CourierID: &c1, CreatedAt: time.Now()})
	free, err = s.ListAvailableCouriers(ctx)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "c2", free[0].ID)

	// A DELIVERED delivery does not occupy its courier.
	at := time.Now()
	s.PutDelivery(model.Delivery{ID: "d1", Status: model.StatusDelivered, CourierID: &c1, CreatedAt: time.Now(), DeliveredAt: &at})
	free, err = s.ListAvailableCouriers(ctx)
	require.NoError(t, err)
	assert.Len(t, free, 2)
}

func TestLocationAppendOnlyOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendLocation(ctx, model.Location{ID: "l2", DeliveryID: "d1", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.AppendLocation(ctx, model.Location{ID: "l1", DeliveryID: "d1", Timestamp: base}))

	locs, err := s.ListLocations(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "l1", locs[0].ID)
}
