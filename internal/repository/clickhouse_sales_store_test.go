package repository

import (
	"testing"
	"time"

	"StoreSales/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestDailySalesQueryBounds(t *testing.T) {
	q, args := dailySalesQuery("db.sales_daily", time.Time{}, time.Time{})
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)

	from := time.Date(2017, 1, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC)
	q, args = dailySalesQuery("db.sales_daily", from, to)
	assert.Contains(t, q, "FROM db.sales_daily FINAL WHERE date >= ? AND date <= ? ORDER BY")
	assert.Equal(t, []interface{}{models.Day(from), to}, args)
}

func TestHolidaysQueryDeduplicates(t *testing.T) {
	assert.Equal(t,
		"SELECT date, type, locale, locale_name, description, transferred FROM db.holidays_events FINAL ORDER BY date",
		holidaysQuery("db.holidays_events"))
}

func TestDailyInsertSkipsInvalidRows(t *testing.T) {
	d := time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC)
	q, args := dailyInsert("db.sales_daily", []models.DailySales{
		{Date: d, StoreNbr: 1, Family: "BREAD", Sales: 10.5, OnPromotion: 2},
		{Date: d, StoreNbr: 0, Family: "BREAD"},
		{Date: d, StoreNbr: 2, Family: ""},
		{Date: d, StoreNbr: 2, Family: "DAIRY", Sales: 3},
	})
	assert.Equal(t, "INSERT INTO db.sales_daily (date, store_nbr, family, sales, onpromotion) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)", q)
	assert.Len(t, args, 10)
	assert.Equal(t, uint16(1), args[1])
	assert.Equal(t, uint32(2), args[4])

	q, _ = dailyInsert("db.sales_daily", []models.DailySales{{StoreNbr: 1}})
	assert.Empty(t, q)
}
