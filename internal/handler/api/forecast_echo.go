package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"StoreSales/internal/domain/models"
	"StoreSales/internal/service/ratelimit"
	"StoreSales/internal/usecase"
	"StoreSales/pkg/cache"
	xhttp "StoreSales/pkg/http"
	xlogger "StoreSales/pkg/logger"
	"StoreSales/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Forecaster produces forecasts for validated requests.
type Forecaster interface {
	ProduceForecast(ctx context.Context, req models.ForecastRequest) (models.Forecast, error)
}

// Reloader drops loaded artifacts so the next request reads them again.
type Reloader interface {
	Invalidate()
}

// TrainQueue accepts retraining jobs.
type TrainQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

const forecastCachePrefix = "forecast"

// ForecastEchoHandler serves the forecast API.
type ForecastEchoHandler struct {
	logger     *xlogger.Logger
	forecaster Forecaster
	cache      cache.Service
	cacheTTL   time.Duration
	limiter    *ratelimit.Limiter
	reloader   Reloader
	trainQueue TrainQueue
	checks     map[string]HealthCheck
}

// HandlerOption configures ForecastEchoHandler.
type HandlerOption func(*ForecastEchoHandler)

// WithCache caches successful responses for ttl.
func WithCache(c cache.Service, ttl time.Duration) HandlerOption {
	return func(h *ForecastEchoHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithRateLimiter limits forecast requests per client IP.
func WithRateLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *ForecastEchoHandler) { h.limiter = l }
}

// WithReloader enables POST /api/artifacts/reload.
func WithReloader(r Reloader) HandlerOption {
	return func(h *ForecastEchoHandler) { h.reloader = r }
}

// WithTrainQueue enables POST /api/train and GET /api/train/stats.
func WithTrainQueue(q TrainQueue) HandlerOption {
	return func(h *ForecastEchoHandler) { h.trainQueue = q }
}

// WithHealthCheck adds a named check to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *ForecastEchoHandler) { h.checks[name] = check }
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecaster Forecaster, opts ...HandlerOption) *ForecastEchoHandler {
	h := &ForecastEchoHandler{
		logger:     logger,
		forecaster: forecaster,
		checks:     map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/", h.Forecast)
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/forecast", h.Forecast)
	if h.reloader != nil {
		g.POST("/artifacts/reload", h.Reload)
	}
	if h.trainQueue != nil {
		g.POST("/train", h.Train)
		g.GET("/train/stats", h.TrainStats)
	}
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
	}

	req := &models.ForecastHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	freq := models.ForecastRequest{
		StoreNbr:    req.StoreNbr,
		Family:      usecase.NormalizeFamily(req.Family),
		Horizon:     req.Horizon,
		OnPromotion: req.OnPromotion,
		IsHoliday:   req.IsHoliday,
	}

	ctx := c.Request().Context()
	key := cacheKey(freq)
	if h.cache != nil && key != "" {
		cached, err := cache.GetJSON[models.ForecastHTTPResponse](ctx, h.cache, key)
		switch {
		case err == nil:
			c.Response().Header().Set("X-Cache", "HIT")
			return xhttp.SuccessResponse(c, cached)
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("forecast cache read error", xlogger.String("key", key), xlogger.Error(err))
		}
	}

	f, err := h.forecaster.ProduceForecast(ctx, freq)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(freq, err))
	}

	res := models.ForecastHTTPResponse{
		StoreNbr:  f.SeriesID.StoreNbr,
		Family:    f.SeriesID.Family,
		Horizon:   f.Horizon,
		Dates:     make([]string, len(f.Dates)),
		Forecasts: f.Values,
		ModelID:   f.ModelID,
	}
	for i, d := range f.Dates {
		res.Dates[i] = d.Format(models.DateLayout)
	}

	if h.cache != nil && key != "" {
		if err := cache.SetJSON(ctx, h.cache, key, res, h.cacheTTL); err != nil {
			h.logger.Warn("forecast cache write error", xlogger.String("key", key), xlogger.Error(err))
		}
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return xhttp.SuccessResponse(c, res)
}

// Health runs every registered check and returns 503 if any fails.
func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("check", name), xlogger.Error(err))
			status[name] = "unavailable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

// Reload drops cached artifacts and cached responses.
func (h *ForecastEchoHandler) Reload(c echo.Context) error {
	h.reloader.Invalidate()
	if h.cache != nil {
		if err := PurgeForecastCache(c.Request().Context(), h.cache); err != nil {
			h.logger.Error("forecast cache purge error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("cache purge failed").WithError(err))
		}
	}
	h.logger.Info("artifacts reload requested", xlogger.String("remote", c.RealIP()))
	return xhttp.SuccessResponse(c, map[string]bool{"reloaded": true})
}

// Train enqueues a retraining run. The run happens in a queue worker; its
// result shows up as new artifacts.
func (h *ForecastEchoHandler) Train(c echo.Context) error {
	req := &usecase.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := req.Options(usecase.TrainOptions{}); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	id, err := h.trainQueue.Enqueue(c.Request().Context(), usecase.RetrainJobType, req)
	if err != nil {
		h.logger.Error("retrain enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(xhttp.CodeQueueUnavailable, "training queue unavailable").WithError(err))
	}
	h.logger.Info("retrain enqueued", xlogger.String("job_id", id), xlogger.String("remote", c.RealIP()))
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"job_id": id})
}

func (h *ForecastEchoHandler) TrainStats(c echo.Context) error {
	stats, err := h.trainQueue.Stats(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(xhttp.CodeQueueUnavailable, "training queue unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, stats)
}

// PurgeForecastCache drops every cached forecast response.
func PurgeForecastCache(ctx context.Context, c cache.Service) error {
	return c.DeleteByPattern(ctx, forecastCachePrefix+":*")
}

func cacheKey(req models.ForecastRequest) string {
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return cache.GenerateKey(forecastCachePrefix, cache.HashKey(b))
}

var validationErrors = []error{
	models.ErrHorizonTooLarge,
	models.ErrHorizonNotPositive,
	models.ErrInsufficientCovariates,
	models.ErrInvalidCovariate,
}

func toAppError(req models.ForecastRequest, err error) *xhttp.AppError {
	switch usecase.ErrorKind(err) {
	case usecase.KindValidation:
		msg := err.Error()
		for _, v := range validationErrors {
			if errors.Is(err, v) {
				msg = v.Error()
				break
			}
		}
		return xhttp.BadRequestError(msg).WithParam("horizon", req.Horizon).WithError(err)
	case usecase.KindUnknownSeries:
		return xhttp.NotFoundErrorf("no trained series for store %d family %s", req.StoreNbr, req.Family).WithError(err)
	case usecase.KindDataIntegrity:
		return xhttp.InternalErrorf(xhttp.CodeDataIntegrity, "forecast data integrity failure").WithError(err)
	case usecase.KindArtifact:
		return xhttp.ServiceUnavailableError(xhttp.CodeArtifactUnavailable, "model artifacts unavailable").WithError(err)
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}
