package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
	"github.com/deliverytrack/engine/infra/logger"
	"github.com/deliverytrack/engine/internal/eventbus"
)

var sampaDestination = model.Coordinate{Latitude: -23.5705, Longitude: -46.6533}

func inTransitDelivery(id, courierID string) model.Delivery {
	return model.Delivery{
		ID:          id,
		Status:      model.StatusInTransit,
		CourierID:   &courierID,
		Destination: sampaDestination,
		CreatedAt:   time.Now(),
	}
}

func TestArrivalCompletesDelivery(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutDelivery(inTransitDelivery("d3", "c1"))

	b := eventbus.New()
	statuses := probe[event.DeliveryStatusUpdated](t, b, event.TopicDeliveryStatusUpdated)
	freed := probe[event.CourierAvailable](t, b, event.TopicCourierAvailable)

	det := NewArrivalDetector(st, b, nil, logger.NopLogger{})
	deliveredAt := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	det.now = func() time.Time { return deliveredAt }

	// ~15 m from the destination.
	require.NoError(t, det.HandleLocationUpdated(ctx, event.LocationUpdated{
		DeliveryID:  "d3",
		CourierID:   "c1",
		CourierName: "Ana",
		Latitude:    -23.5706,
		Longitude:   -46.6534,
		Timestamp:   deliveredAt,
	}))

	d, err := st.GetDelivery(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, d.Status)
	require.NotNil(t, d.DeliveredAt)
	assert.True(t, d.DeliveredAt.Equal(deliveredAt))

	require.Len(t, *statuses, 1)
	assert.Equal(t, "DELIVERED", (*statuses)[0].Status)
	assert.Equal(t, "d3", (*statuses)[0].DeliveryID)

	require.Len(t, *freed, 1)
	assert.Equal(t, event.CourierAvailable{CourierID: "c1", CourierName: "Ana"}, (*freed)[0])
}

func TestDuplicateArrivalIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutDelivery(inTransitDelivery("d3", "c1"))

	b := eventbus.New()
	statuses := probe[event.DeliveryStatusUpdated](t, b, event.TopicDeliveryStatusUpdated)
	det := NewArrivalDetector(st, b, nil, logger.NopLogger{})

	report := event.LocationUpdated{
		DeliveryID: "d3", CourierID: "c1", CourierName: "Ana",
		Latitude: -23.5706, Longitude: -46.6534, Timestamp: time.Now(),
	}
	require.NoError(t, det.HandleLocationUpdated(ctx, report))

	first, err := st.GetDelivery(ctx, "d3")
	require.NoError(t, err)
	firstAt := *first.DeliveredAt

	// The broker redelivers the same report.
	require.NoError(t, det.HandleLocationUpdated(ctx, report))

	second, err := st.GetDelivery(ctx, "d3")
	require.NoError(t, err)
	assert.True(t, second.DeliveredAt.Equal(firstAt), "DeliveredAt must not move")
	assert.Len(t, *statuses, 1, "completion may be published once")
}

func TestFarReportIsIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutDelivery(inTransitDelivery("d3", "c1"))

	b := eventbus.New()
	statuses := probe[event.DeliveryStatusUpdated](t, b, event.TopicDeliveryStatusUpdated)
	det := NewArrivalDetector(st, b, nil, logger.NopLogger{})

	// Rio, ~360 km away.
	require.NoError(t, det.HandleLocationUpdated(ctx, event.LocationUpdated{
		DeliveryID: "d3", CourierID: "c1",
		Latitude: -22.9068, Longitude: -43.1729, Timestamp: time.Now(),
	}))

	d, err := st.GetDelivery(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInTransit, d.Status)
	assert.Empty(t, *statuses)
}

func TestReportForNonTransitDeliveryIsIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	courier := "c1"
	st.PutDelivery(model.Delivery{
		ID: "d4", Status: model.StatusAssigned, CourierID: &courier,
		Destination: sampaDestination, CreatedAt: time.Now(),
	})

	b := eventbus.New()
	statuses := probe[event.DeliveryStatusUpdated](t, b, event.TopicDeliveryStatusUpdated)
	det := NewArrivalDetector(st, b, nil, logger.NopLogger{})

	require.NoError(t, det.HandleLocationUpdated(ctx, event.LocationUpdated{
		DeliveryID: "d4", Latitude: -23.5705, Longitude: -46.6533, Timestamp: time.Now(),
	}))

	d, err := st.GetDelivery(ctx, "d4")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, d.Status)
	assert.Empty(t, *statuses)
}

func TestReportForUnknownDeliveryIsIgnored(t *testing.T) {
	det := NewArrivalDetector(store.NewMemoryStore(), eventbus.New(), nil, logger.NopLogger{})
	assert.NoError(t, det.HandleLocationUpdated(context.Background(), event.LocationUpdated{
		DeliveryID: "ghost", Latitude: 0, Longitude: 0, Timestamp: time.Now(),
	}))
}

func TestCourierNameFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutDelivery(inTransitDelivery("d3", "c1"))

	b := eventbus.New()
	freed := probe[event.CourierAvailable](t, b, event.TopicCourierAvailable)
	det := NewArrivalDetector(st, b, nil, logger.NopLogger{})

	require.NoError(t, det.HandleLocationUpdated(ctx, event.LocationUpdated{
		DeliveryID: "d3", CourierID: "c1",
		Latitude: -23.5706, Longitude: -46.6534, Timestamp: time.Now(),
	}))

	require.Len(t, *freed, 1)
	assert.Equal(t, fallbackCourierName, (*freed)[0].CourierName)
}
