package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rows(start time.Time, n int) CovariateSeries {
	out := make(CovariateSeries, n)
	for i := range out {
		out[i] = CovariateRow{Date: start.AddDate(0, 0, i), OnPromotion: i, OilPrice: 40 + float64(i), IsHoliday: i % 2}
	}
	return out
}

func TestAppendContiguous(t *testing.T) {
	hist := rows(day(2017, 7, 1), 46) // through 2017-08-15
	next := rows(day(2017, 8, 16), 5)

	got, err := hist.Append(next)
	require.NoError(t, err)
	require.Len(t, got, 51)
	assert.NoError(t, got.Validate())
	assert.Equal(t, day(2017, 7, 1), got.Start())
	assert.Equal(t, day(2017, 8, 20), got.End())

	seen := make(map[time.Time]bool, len(got))
	for _, r := range got {
		assert.False(t, seen[r.Date], "duplicate %s", r.Date)
		seen[r.Date] = true
	}
	for d := got.Start(); !d.After(got.End()); d = d.AddDate(0, 0, 1) {
		assert.True(t, seen[d], "missing %s", d)
	}
}

func TestAppendDoesNotMutate(t *testing.T) {
	hist := rows(day(2017, 8, 1), 3)
	backing := make(CovariateSeries, 3, 10)
	copy(backing, hist)
	_, err := backing.Append(rows(day(2017, 8, 4), 2))
	require.NoError(t, err)
	assert.Len(t, backing, 3)
	assert.Equal(t, hist, backing[:3])
	assert.Equal(t, CovariateRow{}, backing[:4][3])
}

func TestAppendGapAndOverlap(t *testing.T) {
	hist := rows(day(2017, 8, 1), 15)

	_, err := hist.Append(rows(day(2017, 8, 17), 3))
	assert.ErrorIs(t, err, ErrNotContiguous)

	_, err = hist.Append(rows(day(2017, 8, 15), 3))
	assert.ErrorIs(t, err, ErrNotContiguous)

	_, err = hist.Append(nil)
	assert.ErrorIs(t, err, ErrNotContiguous)
}

func TestValidate(t *testing.T) {
	s := rows(day(2017, 1, 1), 4)
	assert.NoError(t, s.Validate())

	s[2].Date = s[1].Date
	assert.ErrorIs(t, s.Validate(), ErrNotContiguous)

	ts := TimeSeries{{Date: day(2017, 1, 2)}, {Date: day(2017, 1, 1)}}
	assert.ErrorIs(t, ts.Validate(), ErrNotContiguous)
}

func TestSeriesIDKey(t *testing.T) {
	m := map[SeriesID]int{{StoreNbr: 1, Family: "AUTOMOTIVE"}: 7}
	assert.Equal(t, 7, m[SeriesID{StoreNbr: 1, Family: "AUTOMOTIVE"}])
	assert.Equal(t, "1/AUTOMOTIVE", SeriesID{StoreNbr: 1, Family: "AUTOMOTIVE"}.String())
	assert.True(t, SeriesID{1, "B"}.Less(SeriesID{2, "A"}))
	assert.True(t, SeriesID{1, "A"}.Less(SeriesID{1, "B"}))
}
