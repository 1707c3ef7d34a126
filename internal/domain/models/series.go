package models

import (
	"fmt"
	"time"
)

// SeriesID identifies one store/family sales history. It is comparable and
// safe to use as a map key.
type SeriesID struct {
	StoreNbr int    `json:"store_nbr"`
	Family   string `json:"family"`
}

// String renders the id for logs and cache keys. It is never parsed back.
func (id SeriesID) String() string {
	return fmt.Sprintf("%d/%s", id.StoreNbr, id.Family)
}

// Less orders ids by store number, then family.
func (id SeriesID) Less(other SeriesID) bool {
	if id.StoreNbr != other.StoreNbr {
		return id.StoreNbr < other.StoreNbr
	}
	return id.Family < other.Family
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay returns the calendar day after t (UTC midnight).
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// Point is a single daily observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is a daily series in ascending date order without gaps.
type TimeSeries []Point

// Start returns the first date, or the zero time for an empty series.
func (s TimeSeries) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// End returns the last date, or the zero time for an empty series.
func (s TimeSeries) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// Values returns the observation values in order.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Validate checks the daily index invariants.
func (s TimeSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		if err := checkStep(s[i-1].Date, s[i].Date); err != nil {
			return err
		}
	}
	return nil
}

// CovariateRow holds the exogenous channels for one day.
type CovariateRow struct {
	Date        time.Time `json:"date"`
	OnPromotion int       `json:"onpromotion"`
	OilPrice    float64   `json:"dcoilwtico"`
	IsHoliday   int       `json:"is_holiday"`
}

// CovariateSeries is the three-channel past covariate series of one SeriesID.
// One row per date keeps all channels on an identical index.
type CovariateSeries []CovariateRow

// Start returns the first date, or the zero time for an empty series.
func (s CovariateSeries) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// End returns the last date, or the zero time for an empty series.
func (s CovariateSeries) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// Dates returns the date index.
func (s CovariateSeries) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, r := range s {
		out[i] = r.Date
	}
	return out
}

// Validate checks that dates are ascending, unique and one day apart.
func (s CovariateSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		if err := checkStep(s[i-1].Date, s[i].Date); err != nil {
			return err
		}
	}
	return nil
}

// Append returns a new series with next placed after s. next must start
// exactly one day after s ends. Neither input is modified.
func (s CovariateSeries) Append(next CovariateSeries) (CovariateSeries, error) {
	if len(next) == 0 {
		return nil, fmt.Errorf("%w: empty series appended", ErrNotContiguous)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if len(s) > 0 {
		want := NextDay(s.End())
		if !Day(next.Start()).Equal(want) {
			return nil, fmt.Errorf("%w: history ends %s, next window starts %s (want %s)",
				ErrNotContiguous, s.End().Format(DateLayout), next.Start().Format(DateLayout), want.Format(DateLayout))
		}
	}
	out := make(CovariateSeries, 0, len(s)+len(next))
	out = append(out, s...)
	out = append(out, next...)
	return out, nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

func checkStep(prev, cur time.Time) error {
	want := NextDay(prev)
	if !Day(cur).Equal(want) {
		return fmt.Errorf("%w: %s follows %s", ErrNotContiguous, cur.Format(DateLayout), prev.Format(DateLayout))
	}
	return nil
}
