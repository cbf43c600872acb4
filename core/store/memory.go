package store

import (
	"context"
	"sort"
	"sync"

	"github.com/deliverytrack/engine/core/model"
)

// MemoryStore is a mutex-guarded in-memory implementation of DeliveryStore
// and LocationStore. It backs unit tests and the local run mode; the
// conditional-update semantics match the SQL adapter exactly.
type MemoryStore struct {
	mu         sync.Mutex
	deliveries map[string]model.Delivery
	couriers   map[string]model.Courier
	locations  map[string][]model.Location
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries: make(map[string]model.Delivery),
		couriers:   make(map[string]model.Courier),
		locations:  make(map[string][]model.Location),
	}
}

// PutDelivery inserts or replaces a delivery record.
func (s *MemoryStore) PutDelivery(d model.Delivery) {
	s.mu.Lock()
	s.deliveries[d.ID] = d
	s.mu.Unlock()
}

// PutCourier registers a courier.
func (s *MemoryStore) PutCourier(c model.Courier) {
	s.mu.Lock()
	s.couriers[c.ID] = c
	s.mu.Unlock()
}

func (s *MemoryStore) GetDelivery(_ context.Context, id string) (*model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ConditionalUpdateDelivery(_ context.Context, id string, guard DeliveryGuard, update DeliveryUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return false, nil
	}
	if d.Status != guard.Status {
		return false, nil
	}
	if guard.CourierUnset && d.CourierID != nil {
		return false, nil
	}
	d.Status = update.Status
	if update.CourierID != nil {
		id := *update.CourierID
		d.CourierID = &id
	}
	if update.DeliveredAt != nil {
		at := *update.DeliveredAt
		d.DeliveredAt = &at
	}
	s.deliveries[d.ID] = d
	return true, nil
}

func (s *MemoryStore) FindOldestPendingUnassigned(_ context.Context) (*model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []model.Delivery
	for _, d := range s.deliveries {
		if d.Status == model.StatusPending && d.CourierID == nil {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	d := pending[0]
	return &d, nil
}

func (s *MemoryStore) ListAvailableCouriers(_ context.Context) ([]model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	busy := make(map[string]bool)
	for _, d := range s.deliveries {
		if d.Status.Active() && d.CourierID != nil {
			busy[*d.CourierID] = true
		}
	}
	var free []model.Courier
	for _, c := range s.couriers {
		if !busy[c.ID] {
			free = append(free, c)
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })
	return free, nil
}

func (s *MemoryStore) AppendLocation(_ context.Context, loc model.Location) error {
	s.mu.Lock()
	s.locations[loc.DeliveryID] = append(s.locations[loc.DeliveryID], loc)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListLocations(_ context.Context, deliveryID string) ([]model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locs := append([]model.Location(nil), s.locations[deliveryID]...)
	sort.Slice(locs, func(i, j int) bool { return locs[i].Timestamp.Before(locs[j].Timestamp) })
	return locs, nil
}
