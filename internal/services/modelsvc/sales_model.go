package modelsvc

import (
	"context"
	"fmt"
	"sort"

	"StoreSales/internal/domain/models"
	domsvc "StoreSales/internal/domain/service"
	"StoreSales/pkg/config"
)

// HTTPSalesModel delegates fitting and prediction of the main model to the
// external model service.
type HTTPSalesModel struct {
	predict *HTTPServiceBase
	fit     *HTTPServiceBase
	retries int
}

func NewHTTPSalesModel(cfg *config.Config) *HTTPSalesModel {
	return &HTTPSalesModel{
		predict: NewHTTPServiceBase(cfg.ModelService.URL, cfg.ModelService.Timeout),
		fit:     NewHTTPServiceBase(cfg.ModelService.URL, cfg.ModelService.FitTimeout),
		retries: cfg.ModelService.Retries,
	}
}

type forecastReq struct {
	N              int                    `json:"n"`
	SeriesID       models.SeriesID        `json:"series_id"`
	Series         models.TimeSeries      `json:"series"`
	PastCovariates models.CovariateSeries `json:"past_covariates"`
}

type forecastResp struct {
	Forecast []models.Point `json:"forecast"`
}

type fitReq struct {
	Series []models.SeriesData `json:"series"`
}

type fitResp struct {
	ModelID string `json:"model_id"`
}

// Forecast requests n daily values for id. The result is sorted by date and
// must contain exactly n points.
func (m *HTTPSalesModel) Forecast(ctx context.Context, n int, id models.SeriesID, target models.TimeSeries, past models.CovariateSeries) ([]models.Point, error) {
	var resp forecastResp
	req := forecastReq{N: n, SeriesID: id, Series: target, PastCovariates: past}
	if err := m.predict.PostJSONWithRetry(ctx, "/forecast", req, &resp, m.retries); err != nil {
		return nil, fmt.Errorf("model forecast %s: %w", id, err)
	}
	if len(resp.Forecast) != n {
		return nil, fmt.Errorf("%w: %d values for horizon %d", models.ErrModelOutput, len(resp.Forecast), n)
	}
	out := append([]models.Point(nil), resp.Forecast...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Fit trains the main model on all series. It is not retried.
func (m *HTTPSalesModel) Fit(ctx context.Context, series []models.SeriesData) (string, error) {
	var resp fitResp
	if err := m.fit.PostJSON(ctx, "/fit", fitReq{Series: series}, &resp); err != nil {
		return "", fmt.Errorf("model fit: %w", err)
	}
	if resp.ModelID == "" {
		return "", fmt.Errorf("%w: empty model id", models.ErrModelOutput)
	}
	return resp.ModelID, nil
}

var _ domsvc.SalesModel = (*HTTPSalesModel)(nil)
