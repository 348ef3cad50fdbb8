// Package cache persists provider data in a local SQLite database. Every
// save is an upsert on the record's natural key; nothing is ever truncated.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

// Table names, in export order.
const (
	TablePrices     = "prices"
	TableNews       = "news"
	TableFinancials = "financials"
	TableFetchLog   = "fetch_log"
)

var tables = []string{TablePrices, TableNews, TableFinancials, TableFetchLog}

var _ interfaces.CacheStore = (*Store)(nil)

// Store is safe for concurrent readers; writes are serialised.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug(context.Background(), "Cache store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume REAL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS news (
			symbol       TEXT NOT NULL,
			source_id    TEXT NOT NULL,
			title        TEXT NOT NULL,
			published_at INTEGER,
			url          TEXT,
			publisher    TEXT,
			PRIMARY KEY (symbol, source_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_published ON news(symbol, published_at)`,
		`CREATE TABLE IF NOT EXISTS financials (
			symbol   TEXT NOT NULL,
			category TEXT NOT NULL,
			period   TEXT NOT NULL,
			metrics  TEXT NOT NULL,
			PRIMARY KEY (symbol, category, period)
		)`,
		`CREATE TABLE IF NOT EXISTS fetch_log (
			symbol     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, kind)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetPrices returns every cached bar for symbol in date order.
func (s *Store) GetPrices(ctx context.Context, symbol string) ([]types.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume FROM prices WHERE symbol = ? ORDER BY date`,
		types.CanonicalSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []types.PriceBar
	for rows.Next() {
		var (
			date string
			b    types.PriceBar
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		if b.Date, err = time.Parse(types.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse price date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// GetNews returns cached headlines for symbol, most recent first.
func (s *Store) GetNews(ctx context.Context, symbol string) ([]types.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, title, published_at, url, publisher FROM news
		 WHERE symbol = ? ORDER BY published_at DESC, source_id`,
		types.CanonicalSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	var items []types.NewsItem
	for rows.Next() {
		var (
			it        types.NewsItem
			published int64
			u, pub    sql.NullString
		)
		if err := rows.Scan(&it.SourceID, &it.Title, &published, &u, &pub); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		it.Symbol = types.CanonicalSymbol(symbol)
		if published != 0 {
			it.PublishedAt = time.Unix(published, 0).UTC()
		}
		it.URL = u.String
		it.Publisher = pub.String
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetFinancials returns every cached category, each most recent period first.
// A symbol with no rows yields an empty, non-nil set.
func (s *Store) GetFinancials(ctx context.Context, symbol string) (types.FinancialStatementSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, period, metrics FROM financials
		 WHERE symbol = ? ORDER BY category, period DESC`,
		types.CanonicalSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("query financials: %w", err)
	}
	defer rows.Close()

	set := types.FinancialStatementSet{}
	for rows.Next() {
		var category, period, raw string
		if err := rows.Scan(&category, &period, &raw); err != nil {
			return nil, fmt.Errorf("scan financials: %w", err)
		}
		metrics := map[string]float64{}
		if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
			logger.Warn(ctx, "Skipping unreadable financial record",
				"symbol", symbol, "category", category, "period", period, "error", err)
			continue
		}
		set[category] = append(set[category], types.FinancialRecord{Period: period, Metrics: metrics})
	}
	return set, rows.Err()
}

// SavePrices upserts bars by (symbol, date). Existing days not in bars are kept.
func (s *Store) SavePrices(ctx context.Context, symbol string, bars []types.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = types.CanonicalSymbol(symbol)
	return s.inTx(ctx, `INSERT INTO prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`,
		func(stmt *sql.Stmt) error {
			for _, b := range bars {
				if _, err := stmt.ExecContext(ctx, symbol, b.Date.Format(types.DateLayout),
					b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
					return fmt.Errorf("upsert price %s: %w", b.Date.Format(types.DateLayout), err)
				}
			}
			return nil
		})
}

// SaveNews upserts headlines by (symbol, source_id).
func (s *Store) SaveNews(ctx context.Context, symbol string, items []types.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	symbol = types.CanonicalSymbol(symbol)
	return s.inTx(ctx, `INSERT INTO news (symbol, source_id, title, published_at, url, publisher)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, source_id) DO UPDATE SET
			title = excluded.title, published_at = excluded.published_at,
			url = excluded.url, publisher = excluded.publisher`,
		func(stmt *sql.Stmt) error {
			for _, it := range items {
				if it.SourceID == "" {
					continue
				}
				var published int64
				if !it.PublishedAt.IsZero() {
					published = it.PublishedAt.Unix()
				}
				if _, err := stmt.ExecContext(ctx, symbol, it.SourceID, it.Title, published, it.URL, it.Publisher); err != nil {
					return fmt.Errorf("upsert news %s: %w", it.SourceID, err)
				}
			}
			return nil
		})
}

// SaveFinancials appends periods not seen before and overwrites periods that
// are, keyed by (symbol, category, period).
func (s *Store) SaveFinancials(ctx context.Context, symbol string, set types.FinancialStatementSet) error {
	if len(set) == 0 {
		return nil
	}
	symbol = types.CanonicalSymbol(symbol)

	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return s.inTx(ctx, `INSERT INTO financials (symbol, category, period, metrics)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, category, period) DO UPDATE SET metrics = excluded.metrics`,
		func(stmt *sql.Stmt) error {
			for _, category := range categories {
				for _, rec := range set[category] {
					raw, err := json.Marshal(rec.Metrics)
					if err != nil {
						return fmt.Errorf("encode %s %s: %w", category, rec.Period, err)
					}
					if _, err := stmt.ExecContext(ctx, symbol, category, rec.Period, string(raw)); err != nil {
						return fmt.Errorf("upsert %s %s: %w", category, rec.Period, err)
					}
				}
			}
			return nil
		})
}

// Freshness reports when kind was last refreshed for symbol.
func (s *Store) Freshness(ctx context.Context, symbol string, kind types.DataKind) (time.Time, bool, error) {
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM fetch_log WHERE symbol = ? AND kind = ?`,
		types.CanonicalSymbol(symbol), string(kind)).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query fetch_log: %w", err)
	}
	return time.Unix(at, 0).UTC(), true, nil
}

func (s *Store) MarkFetched(ctx context.Context, symbol string, kind types.DataKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO fetch_log (symbol, kind, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol, kind) DO UPDATE SET fetched_at = excluded.fetched_at`,
		types.CanonicalSymbol(symbol), string(kind), at.Unix())
	if err != nil {
		return fmt.Errorf("mark fetched: %w", err)
	}
	return nil
}

// Symbols lists every symbol with at least one cached price bar.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
