package models

import "time"

// DailySales is one raw training row (store, family, day).
type DailySales struct {
	Date        time.Time `json:"date"`
	StoreNbr    int       `json:"store_nbr"`
	Family      string    `json:"family"`
	Sales       float64   `json:"sales"`
	OnPromotion int       `json:"onpromotion"`
}

// OilPrice is one raw oil price quote. Value is nil for missing quotes.
type OilPrice struct {
	Date  time.Time
	Value *float64
}

// Store holds store metadata used for regional and local holidays.
type Store struct {
	StoreNbr int
	City     string
	State    string
	Type     string
	Cluster  int
}

// Holiday locales and types.
const (
	LocaleNational = "National"
	LocaleRegional = "Regional"
	LocaleLocal    = "Local"

	HolidayTypeWorkDay = "Work Day"
)

// Holiday is one raw holiday/event row.
type Holiday struct {
	Date        time.Time
	Type        string
	Locale      string
	LocaleName  string
	Description string
	Transferred bool
}

// SeriesData bundles the training inputs of one series.
type SeriesData struct {
	ID         SeriesID        `json:"series_id"`
	Target     TimeSeries      `json:"series"`
	Covariates CovariateSeries `json:"past_covariates"`
}
