package quotestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/market"
)

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the cache database at path and applies Schema.
func NewSQLite(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, market.Store("", fmt.Errorf("open %s: %w", path, err))
	}
	// One connection serializes writers; concurrent writes to the same
	// asset resolve as last writer wins.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, market.Store("", fmt.Errorf("apply schema: %w", err))
	}

	o := buildOptions(opts)
	log.WithField("path", path).Info("market data cache initialized")
	return &SQLite{db: db, now: o.now}, nil
}

func (s *SQLite) Get(ctx context.Context, assetID string, maxAge time.Duration) (market.Quote, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset_id, spot, volatility, risk_free_rate, dividend_yield, last_updated, source
		FROM market_data
		WHERE asset_id = ?`, assetID)

	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return market.Quote{}, false, nil
		}
		return market.Quote{}, false, market.Store(assetID, err)
	}

	if !fresh(q, s.now(), maxAge) {
		log.WithFields(log.Fields{"asset_id": assetID, "age": q.Age(s.now())}).Debug("cached quote expired")
		return market.Quote{}, false, nil
	}
	return q, true, nil
}

func (s *SQLite) Put(ctx context.Context, q market.Quote) (market.Quote, error) {
	if err := q.Validate(); err != nil {
		return market.Quote{}, err
	}
	q.LastUpdated = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO market_data
		(asset_id, spot, volatility, risk_free_rate, dividend_yield, last_updated, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.AssetID, q.Spot, q.Volatility, q.RiskFreeRate, q.DividendYield, q.LastUpdated, q.Source,
	)
	if err != nil {
		return market.Quote{}, market.Store(q.AssetID, err)
	}
	return q, nil
}

func (s *SQLite) GetAll(ctx context.Context) (map[string]market.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, spot, volatility, risk_free_rate, dividend_yield, last_updated, source
		FROM market_data
		ORDER BY asset_id ASC`)
	if err != nil {
		return nil, market.Store("", err)
	}
	defer rows.Close()

	out := make(map[string]market.Quote)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, market.Store("", err)
		}
		out[q.AssetID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, market.Store("", err)
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, assetID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM market_data WHERE asset_id = ?`, assetID)
	if err != nil {
		return false, market.Store(assetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, market.Store(assetID, err)
	}
	return n > 0, nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM market_data`); err != nil {
		return market.Store("", err)
	}
	log.Info("cleared all cached market data")
	return nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM market_data`).Scan(&n); err != nil {
		return 0, market.Store("", err)
	}
	return n, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return market.Store("", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuote(r scanner) (market.Quote, error) {
	var q market.Quote
	err := r.Scan(
		&q.AssetID,
		&q.Spot,
		&q.Volatility,
		&q.RiskFreeRate,
		&q.DividendYield,
		&q.LastUpdated,
		&q.Source,
	)
	q.LastUpdated = q.LastUpdated.UTC()
	return q, err
}
