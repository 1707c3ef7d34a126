package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"StoreSales/internal/domain/models"
	"StoreSales/internal/service/ratelimit"
	"StoreSales/internal/usecase"
	"StoreSales/pkg/cache"
	xhttp "StoreSales/pkg/http"
	xlogger "StoreSales/pkg/logger"
	"StoreSales/pkg/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForecaster struct {
	mu    sync.Mutex
	calls int
	last  models.ForecastRequest
	err   error
}

func (f *fakeForecaster) ProduceForecast(_ context.Context, req models.ForecastRequest) (models.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return models.Forecast{}, f.err
	}
	start := time.Date(2017, 8, 16, 0, 0, 0, 0, time.UTC)
	out := models.Forecast{SeriesID: req.SeriesID(), Horizon: req.Horizon, ModelID: "lgbm-1"}
	raw := []models.Sales{12.35, 100, 7.5}
	for i := 0; i < req.Horizon; i++ {
		out.Dates = append(out.Dates, start.AddDate(0, 0, i))
		out.Values = append(out.Values, raw[i%len(raw)])
	}
	return out, nil
}

type fakeReloader struct{ n int }

func (r *fakeReloader) Invalidate() { r.n++ }

func newEcho(h *ForecastEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"store_nbr":1,"family":"bread","horizon":2,"onpromotion":[0,1],"is_holiday":[0,0]}`

func TestForecastSuccess(t *testing.T) {
	f := &fakeForecaster{}
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), f))

	for _, path := range []string{"/api/forecast", "/"} {
		rec := post(e, path, validBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"status":200,"message":"OK","data":{
			"store_nbr":1,"family":"BREAD","horizon":2,
			"dates":["2017-08-16","2017-08-17"],"forecasts":[12.35,100.0],"model_id":"lgbm-1"}}`, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"forecasts":[12.35,100.0]`)
	}
	assert.Equal(t, "BREAD", f.last.Family)
	assert.Equal(t, []int{0, 1}, f.last.OnPromotion)
}

func TestForecastValidation(t *testing.T) {
	f := &fakeForecaster{}
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), f))

	rec := post(e, "/api/forecast", `{"store_nbr":0,"family":"BREAD","horizon":1,"onpromotion":[0],"is_holiday":[0]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"store_nbr"`)

	rec = post(e, "/api/forecast", `{"store_nbr":1,"horizon":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"family"`)

	rec = post(e, "/api/forecast", `{"store_nbr":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.calls)
}

func TestForecastErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"horizon", fmt.Errorf("generate covariates: %w: got 31", models.ErrHorizonTooLarge), http.StatusBadRequest, `"message":"forecast horizon cannot be greater than 30"`},
		{"covariates", fmt.Errorf("generate covariates: %w", models.ErrInsufficientCovariates), http.StatusBadRequest, `"code":"ERR_BAD_REQUEST"`},
		{"unknown", fmt.Errorf("%w: 1/BREAD", models.ErrUnknownSeries), http.StatusNotFound, `"code":"ERR_NOT_FOUND"`},
		{"gap", fmt.Errorf("combine covariates: %w", models.ErrNotContiguous), http.StatusInternalServerError, `"code":"ERR_DATA_INTEGRITY"`},
		{"short oil", fmt.Errorf("generate covariates: %w", models.ErrInsufficientOil), http.StatusInternalServerError, `"code":"ERR_DATA_INTEGRITY"`},
		{"model output", models.ErrModelOutput, http.StatusInternalServerError, `"code":"ERR_DATA_INTEGRITY"`},
		{"artifact", fmt.Errorf("load artifacts: %w", models.ErrArtifact), http.StatusServiceUnavailable, `"code":"ERR_ARTIFACT_UNAVAILABLE"`},
		{"other", errors.New("dial tcp: refused"), http.StatusInternalServerError, `"code":"ERR_INTERNAL"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{err: tt.err}))
			rec := post(e, "/api/forecast", validBody)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestForecastRateLimit(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{}, WithRateLimiter(ratelimit.New(0.001, 1))))

	assert.Equal(t, http.StatusOK, post(e, "/api/forecast", validBody).Code)
	rec := post(e, "/api/forecast", validBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TOO_MANY_REQUESTS")
}

func TestForecastCacheAndReload(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "storesales:")
	mem := cache.NewMemoryCache()
	layered := cache.NewLayeredCache(mem, rc)
	t.Cleanup(func() { _ = layered.Close() })

	f := &fakeForecaster{}
	reloader := &fakeReloader{}
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), f, WithCache(layered, time.Minute), WithReloader(reloader)))

	first := post(e, "/api/forecast", validBody)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// same request with different family casing hits the cache
	second := post(e, "/api/forecast", strings.Replace(validBody, "bread", "BREAD", 1))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.calls)
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], "storesales:forecast:"))

	rec := post(e, "/api/artifacts/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, reloader.n)
	assert.Empty(t, mr.Keys())
	assert.Equal(t, 0, mem.Len())

	post(e, "/api/forecast", validBody)
	assert.Equal(t, 2, f.calls)
}

func TestReloadRouteNeedsReloader(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{}))
	rec := post(e, "/api/artifacts/reload", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	var failing error
	h := NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{},
		WithHealthCheck("artifacts", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return failing }),
	)
	e := newEcho(h)

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec
	}

	rec := get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"artifacts":"ok","clickhouse":"ok"}}`, rec.Body.String())

	failing = errors.New("connection refused")
	rec = get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clickhouse":"unavailable"`)
	assert.NotContains(t, rec.Body.String(), "refused")
}

type fakeTrainQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (q *fakeTrainQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.msgType, q.payload = msgType, payload
	return "job-1", nil
}

func (q *fakeTrainQueue) Stats(context.Context) (queue.Stats, error) {
	return queue.Stats{Pending: 1, Dead: 2}, q.err
}

func TestTrain(t *testing.T) {
	q := &fakeTrainQueue{}
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{}, WithTrainQueue(q)))

	rec := post(e, "/api/train", `{"from":"2017-01-01","test_days":5}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":202,"message":"Accepted","data":{"job_id":"job-1"}}`, rec.Body.String())
	assert.Equal(t, usecase.RetrainJobType, q.msgType)
	req, ok := q.payload.(*usecase.RetrainRequest)
	require.True(t, ok)
	assert.Equal(t, "2017-01-01", req.From)
	require.NotNil(t, req.TestDays)
	assert.Equal(t, 5, *req.TestDays)

	rec = post(e, "/api/train", `{"from":"2017-02-01","to":"2017-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/train/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"pending":1,"retry":0,"dead":2}}`, rec.Body.String())

	q.err = queue.ErrNotRunning
	rec = post(e, "/api/train", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), xhttp.CodeQueueUnavailable)
}

func TestTrainRouteNeedsQueue(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), &fakeForecaster{}))
	rec := post(e, "/api/train", `{}`)
	assert.NotEqual(t, http.StatusAccepted, rec.Code)
}
