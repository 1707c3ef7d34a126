package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StoreSales/pkg/config"
	xhttp "StoreSales/pkg/http"
	pkgkafka "StoreSales/pkg/kafka"
	applogger "StoreSales/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the service lifecycle: HTTP server, optional Kafka
// consumer and the infrastructure clients closed on shutdown.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	closers    []closer
}

// New creates a new App instance.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	return &App{cfg: cfg, l: l, httpServer: httpServer}
}

// WithConsumer runs c with handlers while the app is up.
func (a *App) WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) {
	a.consumer = c
	a.handlers = handlers
}

// OnShutdown registers fn to run after the server and consumer stopped.
// Functions run in reverse registration order.
func (a *App) OnShutdown(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done or the
// HTTP server fails.
func (a *App) RunContext(ctx context.Context) error {
	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			a.l.Info("kafka consumer handler registered", applogger.String("topic", h.Topic()))
		}
		if err := a.consumer.Start(); err != nil {
			a.consumer = nil
			a.shutdown()
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.httpServer.Err():
		a.l.Error("http server failed", applogger.Error(err))
		runErr = err
	}
	a.shutdown()
	return runErr
}

// shutdown stops serving first, then drains the consumer, then closes
// clients.
func (a *App) shutdown() {
	timeout := 10 * time.Second
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("component", c.name), applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
