package service

import (
	"context"
	"time"

	"StoreSales/internal/domain/models"
)

// OilModel projects future oil prices from its training series.
type OilModel interface {
	Forecast(n int) ([]float64, error)
	LastTrainedDate() time.Time
}

// SalesModel is the trained main forecasting model. Its fitting and
// prediction algorithm are opaque to this service.
type SalesModel interface {
	// Forecast predicts n daily values for id, given its target history and
	// past covariates that extend at least n days past the target end.
	Forecast(ctx context.Context, n int, id models.SeriesID, target models.TimeSeries, past models.CovariateSeries) ([]models.Point, error)
	// Fit trains the model on all series and returns the model id.
	Fit(ctx context.Context, series []models.SeriesData) (string, error)
}
