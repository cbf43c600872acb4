package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deliverytrack/engine/core/engine"
	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
	"github.com/deliverytrack/engine/infra/logger"
	"github.com/deliverytrack/engine/internal/eventbus"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one delivery through the full loop in memory",
	Long: `Seeds a courier and a delivery into the in-memory store, wires the
engines to an in-memory bus and replays the events of one delivery:
creation, assignment, transit and the GPS reports that complete it.`,
	RunE: simulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logg := logger.New("simulate")

	st := store.NewMemoryStore()
	destination := model.Coordinate{Latitude: -23.5705, Longitude: -46.6533}
	courier := model.Courier{ID: uuid.NewString(), Name: "Ana"}
	delivery := model.Delivery{
		ID:          uuid.NewString(),
		Status:      model.StatusPending,
		CustomerID:  uuid.NewString(),
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}
	st.PutCourier(courier)
	st.PutDelivery(delivery)

	b := eventbus.New()
	assign := engine.NewAssignmentEngine(st, b, nil, logger.New("assignment"))
	arrival := engine.NewArrivalDetector(st, b, nil, logger.New("arrival"))

	var cfg engine.Config
	cfg.SetDefaults()
	dispatcher := engine.NewDispatcher(b, assign, arrival, cfg, nil, logger.New("dispatcher"))
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			logg.Errorf("dispatcher stop: %v", err)
		}
	}()

	if err := b.Publish(ctx, event.TopicDeliveryCreated, event.DeliveryCreated{DeliveryID: delivery.ID}); err != nil {
		return fmt.Errorf("publish created: %w", err)
	}

	// The mobile client owns the ASSIGNED -> IN_TRANSIT transition; flip it
	// directly the way the pickup confirmation would.
	applied, err := st.ConditionalUpdateDelivery(ctx, delivery.ID,
		store.DeliveryGuard{Status: model.StatusAssigned},
		store.DeliveryUpdate{Status: model.StatusInTransit})
	if err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if !applied {
		return fmt.Errorf("delivery %s not assigned, no courier matched", delivery.ID)
	}

	// Reports approach the destination; only the last one is inside the
	// arrival radius.
	reports := []model.Coordinate{
		{Latitude: -23.6000, Longitude: -46.7000},
		{Latitude: -23.5800, Longitude: -46.6700},
		{Latitude: -23.5706, Longitude: -46.6534},
	}
	for _, r := range reports {
		ev := event.LocationUpdated{
			DeliveryID:  delivery.ID,
			CourierID:   courier.ID,
			CourierName: courier.Name,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Timestamp:   time.Now().UTC(),
		}
		if err := b.Publish(ctx, event.TopicLocationUpdated, ev); err != nil {
			return fmt.Errorf("publish location: %w", err)
		}
	}

	final, err := st.GetDelivery(ctx, delivery.ID)
	if err != nil {
		return fmt.Errorf("read back delivery: %w", err)
	}
	logg.Infof("delivery %s finished as %s", final.ID, final.Status)
	if final.Status != model.StatusDelivered {
		return fmt.Errorf("expected DELIVERED, got %s", final.Status)
	}
	return nil
}
