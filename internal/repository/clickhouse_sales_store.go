package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	pkgch "StoreSales/pkg/clickhouse"
	applogger "StoreSales/pkg/logger"
)

const insertChunkSize = 2000

// CHSalesStore implements SalesStore backed by ClickHouse.
type CHSalesStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSalesStore(ch *pkgch.Client, l *applogger.Logger) *CHSalesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSalesStore{db: ch.DB(), database: ch.Database(), l: l}
}

func (s *CHSalesStore) table(name string) string {
	return s.database + "." + name
}

// DailySales returns rows with from <= date <= to. Zero bounds are open.
func (s *CHSalesStore) DailySales(ctx context.Context, from, to time.Time) ([]models.DailySales, error) {
	start := time.Now()
	q, args := dailySalesQuery(s.table(pkgch.TableSalesDaily), from, to)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logError("daily_sales query error", err)
		return nil, fmt.Errorf("query daily sales: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailySales, 0, 4096)
	for rows.Next() {
		var r models.DailySales
		var store, promo int64
		if err := rows.Scan(&r.Date, &store, &r.Family, &r.Sales, &promo); err != nil {
			s.logError("daily_sales scan error", err)
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		r.Date = models.Day(r.Date)
		r.StoreNbr = int(store)
		r.OnPromotion = int(promo)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError("daily_sales rows error", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse daily_sales ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func dailySalesQuery(table string, from, to time.Time) (string, []interface{}) {
	var where []string
	var args []interface{}
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, models.Day(from))
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, models.Day(to))
	}
	q := "SELECT date, toInt64(store_nbr), family, sales, toInt64(onpromotion) FROM " + table + " FINAL"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY store_nbr, family, date", args
}

func (s *CHSalesStore) OilPrices(ctx context.Context) ([]models.OilPrice, error) {
	q := "SELECT date, isNull(dcoilwtico), ifNull(dcoilwtico, 0) FROM " + s.table(pkgch.TableOil) + " FINAL ORDER BY date"
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logError("oil query error", err)
		return nil, fmt.Errorf("query oil: %w", err)
	}
	defer rows.Close()

	var out []models.OilPrice
	for rows.Next() {
		var (
			p       models.OilPrice
			missing bool
			v       float64
		)
		if err := rows.Scan(&p.Date, &missing, &v); err != nil {
			return nil, fmt.Errorf("scan oil: %w", err)
		}
		p.Date = models.Day(p.Date)
		if !missing {
			p.Value = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHSalesStore) Stores(ctx context.Context) ([]models.Store, error) {
	q := "SELECT toInt64(store_nbr), city, state, type, toInt64(cluster) FROM " + s.table(pkgch.TableStores) + " FINAL ORDER BY store_nbr"
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logError("stores query error", err)
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var out []models.Store
	for rows.Next() {
		var st models.Store
		var nbr, cluster int64
		if err := rows.Scan(&nbr, &st.City, &st.State, &st.Type, &cluster); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		st.StoreNbr = int(nbr)
		st.Cluster = int(cluster)
		out = append(out, st)
	}
	return out, rows.Err()
}

func holidaysQuery(table string) string {
	return "SELECT date, type, locale, locale_name, description, transferred FROM " + table + " FINAL ORDER BY date"
}

func (s *CHSalesStore) Holidays(ctx context.Context) ([]models.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, holidaysQuery(s.table(pkgch.TableHolidays)))
	if err != nil {
		s.logError("holidays query error", err)
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var out []models.Holiday
	for rows.Next() {
		var h models.Holiday
		if err := rows.Scan(&h.Date, &h.Type, &h.Locale, &h.LocaleName, &h.Description, &h.Transferred); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		h.Date = models.Day(h.Date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// StoreDaily inserts rows in multi-row batches. Re-sent rows replace earlier
// ones for the same store, family and date on merge.
func (s *CHSalesStore) StoreDaily(ctx context.Context, rows []models.DailySales) error {
	table := s.table(pkgch.TableSalesDaily)
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		q, args := dailyInsert(table, rows[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logError("daily_sales insert error", err, applogger.Int("rows", end-start))
			return fmt.Errorf("insert daily sales: %w", err)
		}
	}
	return nil
}

func dailyInsert(table string, rows []models.DailySales) (string, []interface{}) {
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*5)
	for _, r := range rows {
		if r.StoreNbr <= 0 || r.Family == "" || r.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, models.Day(r.Date), uint16(r.StoreNbr), r.Family, r.Sales, uint32(r.OnPromotion))
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (date, store_nbr, family, sales, onpromotion) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func (s *CHSalesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSalesStore) logError(msg string, err error, fields ...applogger.Field) {
	s.l.Error("clickhouse "+msg, append(fields, applogger.Error(err))...)
}

var _ domrepo.SalesStore = (*CHSalesStore)(nil)
