package etl

import (
	"time"

	"StoreSales/internal/domain/models"
)

// HolidayCalendar answers whether a store observes a holiday on a date.
// Transferred holidays and working days are ignored. National holidays apply
// to every store, regional ones to stores in the state, local ones to stores
// in the city.
type HolidayCalendar struct {
	national map[time.Time]struct{}
	regional map[time.Time]map[string]struct{}
	local    map[time.Time]map[string]struct{}
}

func NewHolidayCalendar(holidays []models.Holiday) *HolidayCalendar {
	c := &HolidayCalendar{
		national: make(map[time.Time]struct{}),
		regional: make(map[time.Time]map[string]struct{}),
		local:    make(map[time.Time]map[string]struct{}),
	}
	for _, h := range holidays {
		if h.Transferred || h.Type == models.HolidayTypeWorkDay || h.Locale != models.LocaleNational {
			continue
		}
		c.national[models.Day(h.Date)] = struct{}{}
	}
	for _, h := range holidays {
		if h.Transferred || h.Type == models.HolidayTypeWorkDay {
			continue
		}
		d := models.Day(h.Date)
		if _, ok := c.national[d]; ok {
			continue
		}
		switch h.Locale {
		case models.LocaleRegional:
			addName(c.regional, d, h.LocaleName)
		case models.LocaleLocal:
			addName(c.local, d, h.LocaleName)
		}
	}
	return c
}

func addName(m map[time.Time]map[string]struct{}, d time.Time, name string) {
	names, ok := m[d]
	if !ok {
		names = make(map[string]struct{})
		m[d] = names
	}
	names[name] = struct{}{}
}

// IsHoliday returns 1 when st observes a holiday on date, else 0.
func (c *HolidayCalendar) IsHoliday(date time.Time, st models.Store) int {
	d := models.Day(date)
	if _, ok := c.national[d]; ok {
		return 1
	}
	if _, ok := c.regional[d][st.State]; ok {
		return 1
	}
	if _, ok := c.local[d][st.City]; ok {
		return 1
	}
	return 0
}
