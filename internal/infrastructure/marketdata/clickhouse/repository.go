package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
	"marketdata-backfill/internal/infrastructure/marketdata"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
    id UUID,
    symbol String,
    timestamp DateTime('UTC'),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    volume Float64,
    created_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
ORDER BY (symbol, timestamp)
`

// Repository stores records in ClickHouse MergeTree tables. One BulkWrite is one insert block.
type Repository struct {
	conn driver.Conn
}

var _ interfaces.RecordRepository = (*Repository)(nil)

func NewRepository(ctx context.Context, cfg config.ClickHouseConfig) (*Repository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Protocol: clickhouse.Native,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Repository{conn: conn}, nil
}

func (r *Repository) Close() {
	if r == nil || r.conn == nil {
		return
	}
	_ = r.conn.Close()
}

// EnsureSchema creates the record tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, class := range []ohlcv.AssetClass{ohlcv.ClassCrypto, ohlcv.ClassStock} {
		table, _ := marketdata.TableName(class)
		if err := r.conn.Exec(ctx, fmt.Sprintf(createTableSQL, table)); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}

func (r *Repository) BulkWrite(ctx context.Context, class ohlcv.AssetClass, records []ohlcv.Record) (int, error) {
	table, err := marketdata.TableName(class)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return 0, fmt.Errorf("prepare batch %s: %w", table, err)
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		rec := records[i]
		if err := batch.Append(
			rec.ID,
			rec.Symbol,
			rec.Timestamp,
			rec.Open,
			rec.High,
			rec.Low,
			rec.Close,
			rec.Volume,
			rec.CreatedAt,
		); err != nil {
			abortErr := batch.Abort()
			return 0, fmt.Errorf("append to %s: %w", table, errors.Join(err, abortErr))
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch %s: %w", table, err)
	}
	return len(records), nil
}

func (r *Repository) Query(ctx context.Context, class ohlcv.AssetClass, q ohlcv.Query) ([]ohlcv.Record, error) {
	table, err := marketdata.TableName(class)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	where := []string{"symbol = ?"}
	args := []any{q.Symbol}
	if !q.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.To)
	}
	args = append(args, q.Limit)

	query := fmt.Sprintf(`
		SELECT id, symbol, timestamp, open, high, low, close, volume, created_at
		FROM %s
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ?`, table, strings.Join(where, " AND "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ohlcv.Record, 0)
	for rows.Next() {
		var rec ohlcv.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&rec.Timestamp,
			&rec.Open,
			&rec.High,
			&rec.Low,
			&rec.Close,
			&rec.Volume,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) Stats(ctx context.Context) (map[ohlcv.AssetClass]ohlcv.Stats, error) {
	out := make(map[ohlcv.AssetClass]ohlcv.Stats, 2)
	for _, class := range []ohlcv.AssetClass{ohlcv.ClassCrypto, ohlcv.ClassStock} {
		table, _ := marketdata.TableName(class)
		var total, symbols uint64
		query := fmt.Sprintf("SELECT count(), uniqExact(symbol) FROM %s", table)
		if err := r.conn.QueryRow(ctx, query).Scan(&total, &symbols); err != nil {
			return nil, fmt.Errorf("stats %s: %w", table, err)
		}
		out[class] = ohlcv.Stats{TotalRecords: int64(total), SymbolsCount: int64(symbols)}
	}
	return out, nil
}
