package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
)

// Store implements store.DeliveryStore and store.LocationStore on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New connects to the given DSN and migrates the engine tables.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing GORM handle, used by tests.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&DeliveryDTO{}, &CourierDTO{}, &LocationDTO{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// GetDelivery returns the delivery or store.ErrNotFound.
func (s *Store) GetDelivery(ctx context.Context, id string) (*model.Delivery, error) {
	var dto DeliveryDTO
	if err := s.db.WithContext(ctx).First(&dto, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return toDelivery(dto), nil
}

// ConditionalUpdateDelivery applies update iff guard matches the current row.
// The guard is enforced in the WHERE clause, so concurrent updaters race on a
// single row version and at most one of them sees RowsAffected == 1.
func (s *Store) ConditionalUpdateDelivery(ctx context.Context, id string, guard store.DeliveryGuard, update store.DeliveryUpdate) (bool, error) {
	values := map[string]any{"status": string(update.Status)}
	if update.CourierID != nil {
		values["courier_id"] = *update.CourierID
	}
	if update.DeliveredAt != nil {
		values["delivered_at"] = *update.DeliveredAt
	}

	tx := s.db.WithContext(ctx).Model(&DeliveryDTO{}).
		Where("id = ? AND status = ?", id, string(guard.Status))
	if guard.CourierUnset {
		tx = tx.Where("courier_id IS NULL")
	}
	res := tx.Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindOldestPendingUnassigned returns the PENDING courier-less delivery with
// the smallest created_at, or nil when none exists.
func (s *Store) FindOldestPendingUnassigned(ctx context.Context) (*model.Delivery, error) {
	var dto DeliveryDTO
	err := s.db.WithContext(ctx).
		Where("status = ? AND courier_id IS NULL", string(model.StatusPending)).
		Order("created_at ASC, id ASC").
		First(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDelivery(dto), nil
}

// ListAvailableCouriers returns couriers with no ASSIGNED or IN_TRANSIT
// delivery. Availability is derived here, never stored.
func (s *Store) ListAvailableCouriers(ctx context.Context) ([]model.Courier, error) {
	busy := s.db.Model(&DeliveryDTO{}).
		Select("courier_id").
		Where("status IN ? AND courier_id IS NOT NULL",
			[]string{string(model.StatusAssigned), string(model.StatusInTransit)})

	var dtos []CourierDTO
	err := s.db.WithContext(ctx).
		Where("id NOT IN (?)", busy).
		Order("id ASC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	couriers := make([]model.Courier, 0, len(dtos))
	for _, dto := range dtos {
		couriers = append(couriers, toCourier(dto))
	}
	return couriers, nil
}

// AppendLocation stores one GPS report.
func (s *Store) AppendLocation(ctx context.Context, loc model.Location) error {
	dto := fromLocation(loc)
	return s.db.WithContext(ctx).Create(&dto).Error
}

// ListLocations returns the reports for a delivery ordered by timestamp.
func (s *Store) ListLocations(ctx context.Context, deliveryID string) ([]model.Location, error) {
	var dtos []LocationDTO
	err := s.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("timestamp ASC, id ASC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	locs := make([]model.Location, 0, len(dtos))
	for _, dto := range dtos {
		locs = append(locs, toLocation(dto))
	}
	return locs, nil
}

// CreateDelivery inserts a new delivery row. Used by the simulate command and
// by tests; the production write path belongs to the CRUD service.
func (s *Store) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	if err := d.Validate(); err != nil {
		return err
	}
	dto := fromDelivery(d)
	return s.db.WithContext(ctx).Create(&dto).Error
}

// CreateCourier inserts a new courier row.
func (s *Store) CreateCourier(ctx context.Context, c model.Courier) error {
	dto := CourierDTO{ID: c.ID, Name: c.Name}
	return s.db.WithContext(ctx).Create(&dto).Error
}
