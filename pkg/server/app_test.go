package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"StoreSales/pkg/config"
	xhttp "StoreSales/pkg/http"
	applogger "StoreSales/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContextShutdownOrder(t *testing.T) {
	var cfg config.Config
	cfg.Server.ShutdownTimeout = time.Second
	srv := xhttp.NewServer(nil, applogger.Nop(), xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(&cfg, applogger.Nop(), srv)

	var order []string
	app.OnShutdown("clickhouse", func() error {
		order = append(order, "clickhouse")
		return nil
	})
	app.OnShutdown("producer", func() error {
		order = append(order, "producer")
		return errors.New("already closed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"producer", "clickhouse"}, order)
}

func TestRunContextListenFailure(t *testing.T) {
	srv := xhttp.NewServer(nil, applogger.Nop(), xhttp.WithHost("127.0.0.1"), xhttp.WithPort(-1))
	app := New(nil, applogger.Nop(), srv)

	closed := false
	app.OnShutdown("cache", func() error {
		closed = true
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- app.RunContext(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen failure not reported")
	}
	assert.True(t, closed)
}
