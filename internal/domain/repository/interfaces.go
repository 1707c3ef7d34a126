package repository

import (
	"context"
	"time"

	"StoreSales/internal/domain/models"
)

// SalesStore reads the raw training tables and accepts new daily rows.
type SalesStore interface {
	DailySales(ctx context.Context, from, to time.Time) ([]models.DailySales, error)
	OilPrices(ctx context.Context) ([]models.OilPrice, error)
	Stores(ctx context.Context) ([]models.Store, error)
	Holidays(ctx context.Context) ([]models.Holiday, error)
	StoreDaily(ctx context.Context, rows []models.DailySales) error
	Health(ctx context.Context) error
}

// ForecastPublisher emits forecast events to downstream consumers.
type ForecastPublisher interface {
	PublishForecast(ctx context.Context, ev models.ForecastProduced) error
	Close() error
}

type Metrics interface {
	RecordForecast(status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordIngested(source string, n int)
}
