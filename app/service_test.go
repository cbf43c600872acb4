package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deliverytrack/engine/config"
)

func TestServiceLifecycle(t *testing.T) {
	cfg := &config.Config{}
	cfg.Kafka.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Engine.SetDefaults()
	cfg.Reconciler.SetDefaults()
	cfg.Reconciler.Enabled = true

	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not shut down")
	}
}
