package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxHorizon is the longest supported forecast window in days.
const MaxHorizon = 30

// OilForecastWindow is how many days of oil prices are projected per request.
// It is tied to MaxHorizon so every accepted horizon is covered.
const OilForecastWindow = MaxHorizon

// SalesDecimals is the precision of returned forecasts.
const SalesDecimals = 2

// Sales is a forecast value. It always encodes with a fractional part
// (100.0, not 100).
type Sales float64

// RoundSales rounds v half away from zero to SalesDecimals places using its
// shortest decimal representation, so 12.345 becomes 12.35.
func RoundSales(v float64) Sales {
	return Sales(decimal.NewFromFloat(v).Round(SalesDecimals).InexactFloat64())
}

func (s Sales) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("sales value %v is not finite", f)
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return []byte(out), nil
}

// ForecastRequest is what the serving boundary hands to the composer.
type ForecastRequest struct {
	StoreNbr    int
	Family      string
	Horizon     int
	OnPromotion []int
	IsHoliday   []int
}

// SeriesID returns the composite key of the request.
func (r ForecastRequest) SeriesID() SeriesID {
	return SeriesID{StoreNbr: r.StoreNbr, Family: r.Family}
}

// Forecast is a horizon-length daily sales forecast in chronological order.
type Forecast struct {
	SeriesID SeriesID
	Horizon  int
	Dates    []time.Time
	Values   []Sales
	ModelID  string
}

// Floats returns the forecast values as plain floats.
func (f Forecast) Floats() []float64 {
	out := make([]float64, len(f.Values))
	for i, v := range f.Values {
		out[i] = float64(v)
	}
	return out
}

// ForecastProduced is the event emitted after a successful forecast.
type ForecastProduced struct {
	StoreNbr  int       `json:"store_nbr"`
	Family    string    `json:"family"`
	Horizon   int       `json:"horizon"`
	StartDate string    `json:"start_date"`
	Forecasts []Sales   `json:"forecasts"`
	ModelID   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
}
