package etl

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"StoreSales/internal/domain/models"
)

var ErrNoSales = errors.New("etl: no sales rows")

// Options tunes the integration pipeline.
type Options struct {
	HampelWindow int
	HampelSigma  float64
}

// Dataset is the aligned output of Integrate.
type Dataset struct {
	Series  []models.SeriesData // sorted by SeriesID
	Oil     models.TimeSeries   // full daily range
	Dropped []models.SeriesID   // constant series removed
}

// Integrate merges raw sales, oil, store and holiday rows into one gap-free
// daily target and covariate series per store/family. Targets are
// interpolated over missing days and outlier filtered. Promotion counts are
// forward filled while oil and holiday flags come from their own sources.
// Constant series are dropped.
func Integrate(sales []models.DailySales, oil []models.OilPrice, stores []models.Store, holidays []models.Holiday, opts Options) (*Dataset, error) {
	if len(sales) == 0 {
		return nil, ErrNoSales
	}
	if opts.HampelWindow == 0 {
		opts.HampelWindow = 7
	}
	if opts.HampelSigma == 0 {
		opts.HampelSigma = 3
	}

	storeByNbr := make(map[int]models.Store, len(stores))
	for _, s := range stores {
		storeByNbr[s.StoreNbr] = s
	}
	cal := NewHolidayCalendar(holidays)

	dates := make([]time.Time, 0, len(sales))
	bySeries := make(map[models.SeriesID]map[time.Time]models.DailySales)
	for _, r := range sales {
		d := models.Day(r.Date)
		dates = append(dates, d)
		id := models.SeriesID{StoreNbr: r.StoreNbr, Family: r.Family}
		m, ok := bySeries[id]
		if !ok {
			m = make(map[time.Time]models.DailySales)
			bySeries[id] = m
		}
		r.Date = d
		m[d] = r
	}

	start, end := minMax(dates)
	days := dailyRange(start, end)

	oilByDate, err := FillOil(days, oil)
	if err != nil {
		return nil, fmt.Errorf("fill oil: %w", err)
	}

	ds := &Dataset{Oil: make(models.TimeSeries, len(days))}
	for i, d := range days {
		ds.Oil[i] = models.Point{Date: d, Value: oilByDate[d]}
	}

	ids := make([]models.SeriesID, 0, len(bySeries))
	for id := range bySeries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	for _, id := range ids {
		rows := bySeries[id]
		st, ok := storeByNbr[id.StoreNbr]
		if !ok {
			return nil, fmt.Errorf("etl: no store metadata for store %d", id.StoreNbr)
		}

		raw := make([]float64, len(days))
		cov := make(models.CovariateSeries, len(days))
		firstPromo, promo, seen := 0, 0, false
		for i, d := range days {
			raw[i] = math.NaN()
			if r, ok := rows[d]; ok {
				raw[i] = r.Sales
				promo = r.OnPromotion
				if !seen {
					firstPromo, seen = promo, true
				}
			}
			cov[i] = models.CovariateRow{
				Date:        d,
				OnPromotion: promo,
				OilPrice:    oilByDate[d],
				IsHoliday:   cal.IsHoliday(d, st),
			}
		}
		// promotions before the first row take the first observed count
		for i := 0; i < len(days) && !hasRow(rows, days[i]); i++ {
			cov[i].OnPromotion = firstPromo
		}

		filled, err := Interpolate(raw)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", id, err)
		}
		filtered := Hampel(filled, opts.HampelWindow, opts.HampelSigma)
		if IsConstant(filtered) {
			ds.Dropped = append(ds.Dropped, id)
			continue
		}

		target := make(models.TimeSeries, len(days))
		for i, d := range days {
			target[i] = models.Point{Date: d, Value: filtered[i]}
		}
		ds.Series = append(ds.Series, models.SeriesData{ID: id, Target: target, Covariates: cov})
	}
	return ds, nil
}

// SplitTail holds out the last days of a series for evaluation.
func SplitTail(s models.SeriesData, days int) (train, test models.SeriesData) {
	if days <= 0 || days >= len(s.Target) {
		return s, models.SeriesData{ID: s.ID}
	}
	cut := len(s.Target) - days
	train = models.SeriesData{ID: s.ID, Target: s.Target[:cut], Covariates: s.Covariates[:cut]}
	test = models.SeriesData{ID: s.ID, Target: s.Target[cut:], Covariates: s.Covariates[cut:]}
	return train, test
}

func hasRow(rows map[time.Time]models.DailySales, d time.Time) bool {
	_, ok := rows[d]
	return ok
}

func dailyRange(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func minMax(dates []time.Time) (time.Time, time.Time) {
	lo, hi := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(lo) {
			lo = d
		}
		if d.After(hi) {
			hi = d
		}
	}
	return lo, hi
}

func sortedDates(set map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
