package clickhouse

import "fmt"

// Table names of the raw training data.
const (
	TableSalesDaily = "sales_daily"
	TableOil        = "oil"
	TableStores     = "stores"
	TableHolidays   = "holidays_events"
)

// Schema returns the idempotent DDL for the storesales tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    date        Date,
    store_nbr   UInt16,
    family      LowCardinality(String),
    sales       Float64,
    onpromotion UInt32,
    inserted_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (store_nbr, family, date)`, database, TableSalesDaily),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    date       Date,
    dcoilwtico Nullable(Float64)
) ENGINE = ReplacingMergeTree
ORDER BY date`, database, TableOil),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    store_nbr UInt16,
    city      String,
    state     String,
    type      String,
    cluster   UInt8
) ENGINE = ReplacingMergeTree
ORDER BY store_nbr`, database, TableStores),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    date        Date,
    type        String,
    locale      String,
    locale_name String,
    description String,
    transferred Bool
) ENGINE = ReplacingMergeTree
ORDER BY (date, locale, locale_name, description, type)`, database, TableHolidays),
	}
}
