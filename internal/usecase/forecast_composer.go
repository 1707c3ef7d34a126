package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	domsvc "StoreSales/internal/domain/service"
	"StoreSales/internal/services/covariates"
	applogger "StoreSales/pkg/logger"
)

const publishTimeout = 2 * time.Second

// ForecastComposer turns a forecast request into a horizon-length forecast
// using the trained artifacts and the main model. It holds no mutable state.
type ForecastComposer struct {
	loader    domrepo.ArtifactLoader
	model     domsvc.SalesModel
	publisher domrepo.ForecastPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

// ComposerOption configures ForecastComposer.
type ComposerOption func(*ForecastComposer)

// WithPublisher emits a ForecastProduced event after every success.
func WithPublisher(p domrepo.ForecastPublisher) ComposerOption {
	return func(c *ForecastComposer) { c.publisher = p }
}

func NewForecastComposer(loader domrepo.ArtifactLoader, model domsvc.SalesModel, metrics domrepo.Metrics, l *applogger.Logger, opts ...ComposerOption) *ForecastComposer {
	c := &ForecastComposer{
		loader:  loader,
		model:   model,
		metrics: metrics,
		l:       l,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProduceForecast returns the forecast for req. Errors wrap the domain
// sentinels so callers can classify them with errors.Is.
func (c *ForecastComposer) ProduceForecast(ctx context.Context, req models.ForecastRequest) (models.Forecast, error) {
	start := c.now()
	f, err := c.produce(ctx, req)
	c.metrics.RecordLatency("forecast", c.now().Sub(start).Seconds())

	id := req.SeriesID()
	if err != nil {
		kind := ErrorKind(err)
		c.metrics.RecordForecast("error")
		c.metrics.RecordError("forecast_" + kind)
		log := c.l.Warn
		if kind == KindInternal || kind == KindDataIntegrity {
			log = c.l.Error
		}
		log("forecast failed",
			applogger.Stringer("series", id),
			applogger.Int("horizon", req.Horizon),
			applogger.String("kind", kind),
			applogger.Error(err),
		)
		return models.Forecast{}, err
	}

	c.metrics.RecordForecast("ok")
	c.l.Info("forecast produced",
		applogger.Stringer("series", id),
		applogger.Int("horizon", f.Horizon),
		applogger.Date("start_date", f.Dates[0]),
		applogger.String("model_id", f.ModelID),
		applogger.Duration("duration_ms", c.now().Sub(start)),
	)
	c.publish(ctx, f)
	return f, nil
}

func (c *ForecastComposer) produce(ctx context.Context, req models.ForecastRequest) (models.Forecast, error) {
	set, err := c.loader.Load(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrArtifact) {
			err = fmt.Errorf("%w: %v", models.ErrArtifact, err)
		}
		return models.Forecast{}, fmt.Errorf("load artifacts: %w", err)
	}

	id := req.SeriesID()
	history, okCov := set.Covariates[id]
	target, okTarget := set.Targets[id]
	if !set.Manifest.Knows(id) || !okCov || !okTarget {
		return models.Forecast{}, fmt.Errorf("%w: %s", models.ErrUnknownSeries, id)
	}

	oil, err := set.Oil.Forecast(models.OilForecastWindow)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("oil forecast: %w", err)
	}

	future, err := covariates.Generate(req.Horizon, req.OnPromotion, oil, req.IsHoliday, set.Oil.LastTrainedDate())
	if err != nil {
		return models.Forecast{}, fmt.Errorf("generate covariates: %w", err)
	}

	combined, err := history.Append(future)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("combine covariates: %w", err)
	}

	points, err := c.model.Forecast(ctx, req.Horizon, id, target, combined)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("sales model: %w", err)
	}
	if len(points) != req.Horizon {
		return models.Forecast{}, fmt.Errorf("%w: %d values for horizon %d", models.ErrModelOutput, len(points), req.Horizon)
	}

	points = append([]models.Point(nil), points...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	values := make([]models.Sales, len(points))
	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return models.Forecast{}, fmt.Errorf("%w: non-finite value at step %d", models.ErrModelOutput, i+1)
		}
		values[i] = models.RoundSales(p.Value)
	}

	return models.Forecast{
		SeriesID: id,
		Horizon:  req.Horizon,
		Dates:    future.Dates(),
		Values:   values,
		ModelID:  set.Manifest.ModelID,
	}, nil
}

func (c *ForecastComposer) publish(ctx context.Context, f models.Forecast) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := models.ForecastProduced{
		StoreNbr:  f.SeriesID.StoreNbr,
		Family:    f.SeriesID.Family,
		Horizon:   f.Horizon,
		StartDate: f.Dates[0].Format(models.DateLayout),
		Forecasts: f.Values,
		ModelID:   f.ModelID,
		CreatedAt: c.now().UTC(),
	}
	if err := c.publisher.PublishForecast(ctx, ev); err != nil {
		c.metrics.RecordError("forecast_publish")
		c.l.Warn("forecast event not published",
			applogger.Stringer("series", f.SeriesID),
			applogger.Error(err),
		)
	}
}

// Error kinds used for metrics and for mapping to transport errors.
const (
	KindValidation    = "validation"
	KindUnknownSeries = "unknown_series"
	KindDataIntegrity = "data_integrity"
	KindArtifact      = "artifact"
	KindInternal      = "internal"
)

// ErrorKind classifies a ProduceForecast error.
func ErrorKind(err error) string {
	switch {
	case models.IsValidation(err):
		return KindValidation
	case errors.Is(err, models.ErrUnknownSeries):
		return KindUnknownSeries
	case errors.Is(err, models.ErrNotContiguous), errors.Is(err, models.ErrModelOutput), errors.Is(err, models.ErrInsufficientOil):
		return KindDataIntegrity
	case errors.Is(err, models.ErrArtifact):
		return KindArtifact
	default:
		return KindInternal
	}
}
