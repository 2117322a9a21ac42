package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/platform/config"
)

func memoryConfig(addr string) config.Config {
	return config.Config{
		Addr:             addr,
		Environment:      "test",
		StoreDriver:      config.StoreDriverMemory,
		JWTSecret:        "main-secret",
		Timezone:         "UTC",
		WeekStartDay:     time.Monday,
		ExportWorkers:    1,
		ExportQueueSize:  1,
		ExportTimeout:    time.Minute,
		ExportResultTTL:  time.Minute,
		ExportMaxDays:    31,
		ExportRateWindow: time.Minute,
		MaxBodyBytes:     4096,
		LogLevel:         "error",
	}
}

func TestRunReturnsStartupError(t *testing.T) {
	cfg := memoryConfig(":0")
	cfg.StoreDriver = "sqlite"
	err := run(context.Background(), cfg)
	assert.ErrorContains(t, err, "startup failed")
}

func TestRunReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	err = run(context.Background(), memoryConfig(busy.Addr().String()))
	assert.ErrorContains(t, err, "server failed")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, memoryConfig("127.0.0.1:0")) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
