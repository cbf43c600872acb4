// Package postgres implements the delivery and location stores on PostgreSQL
// using GORM. The delivery and courier tables are owned by the external CRUD
// service; this adapter only reads them and performs guarded updates.
package postgres

import (
	"time"

	"github.com/deliverytrack/engine/core/model"
)

// DeliveryDTO maps a delivery row. Status and courier_id are indexed because
// every engine query filters on them.
type DeliveryDTO struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Status      string `gorm:"index"`
	CustomerID  string
	CourierID   *string `gorm:"index"`
	DestLat     float64
	DestLng     float64
	CreatedAt   time.Time `gorm:"index"`
	DeliveredAt *time.Time
}

func (DeliveryDTO) TableName() string {
	return "deliveries"
}

// CourierDTO maps a courier row. Availability is never stored; it is derived
// from the deliveries table at query time.
type CourierDTO struct {
	ID   string `gorm:"type:uuid;primaryKey"`
	Name string
}

func (CourierDTO) TableName() string {
	return "couriers"
}

// LocationDTO maps one GPS report. Rows are append-only.
type LocationDTO struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	DeliveryID string `gorm:"index"`
	Latitude   float64
	Longitude  float64
	Timestamp  time.Time `gorm:"index"`
}

func (LocationDTO) TableName() string {
	return "locations"
}

func fromDelivery(d *model.Delivery) DeliveryDTO {
	return DeliveryDTO{
		ID:          d.ID,
		Status:      string(d.Status),
		CustomerID:  d.CustomerID,
		CourierID:   d.CourierID,
		DestLat:     d.Destination.Latitude,
		DestLng:     d.Destination.Longitude,
		CreatedAt:   d.CreatedAt,
		DeliveredAt: d.DeliveredAt,
	}
}

func toDelivery(dto DeliveryDTO) *model.Delivery {
	return &model.Delivery{
		ID:         dto.ID,
		Status:     model.Status(dto.Status),
		CustomerID: dto.CustomerID,
		CourierID:  dto.CourierID,
		Destination: model.Coordinate{
			Latitude:  dto.DestLat,
			Longitude: dto.DestLng,
		},
		CreatedAt:   dto.CreatedAt,
		DeliveredAt: dto.DeliveredAt,
	}
}

func toCourier(dto CourierDTO) model.Courier {
	return model.Courier{ID: dto.ID, Name: dto.Name}
}

func fromLocation(l model.Location) LocationDTO {
	return LocationDTO{
		ID:         l.ID,
		DeliveryID: l.DeliveryID,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Timestamp:  l.Timestamp,
	}
}

func toLocation(dto LocationDTO) model.Location {
	return model.Location{
		ID:         dto.ID,
		DeliveryID: dto.DeliveryID,
		Latitude:   dto.Latitude,
		Longitude:  dto.Longitude,
		Timestamp:  dto.Timestamp,
	}
}
