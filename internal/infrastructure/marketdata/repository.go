package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
)

var ErrUnknownClass = errors.New("unknown asset class")

var tables = map[ohlcv.AssetClass]string{
	ohlcv.ClassCrypto: "crypto_data",
	ohlcv.ClassStock:  "stock_data",
}

// TableName maps an asset class to the table holding its records.
func TableName(class ohlcv.AssetClass) (string, error) {
	name, ok := tables[class]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return name, nil
}

var recordColumns = []string{"id", "symbol", "timestamp", "open", "high", "low", "close", "volume", "created_at"}

type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.RecordRepository = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const schemaTemplate = `
	CREATE TABLE IF NOT EXISTS %[1]s (
		id          UUID PRIMARY KEY,
		symbol      TEXT NOT NULL,
		"timestamp" TIMESTAMPTZ NOT NULL,
		open        DOUBLE PRECISION NOT NULL,
		high        DOUBLE PRECISION NOT NULL,
		low         DOUBLE PRECISION NOT NULL,
		close       DOUBLE PRECISION NOT NULL,
		volume      DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

const indexTemplate = `CREATE INDEX IF NOT EXISTS %[1]s_symbol_timestamp_idx ON %[1]s (symbol, "timestamp")`

// EnsureSchema creates the record tables and their lookup indexes when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, class := range []ohlcv.AssetClass{ohlcv.ClassCrypto, ohlcv.ClassStock} {
		table := tables[class]
		batch.Queue(fmt.Sprintf(schemaTemplate, table))
		batch.Queue(fmt.Sprintf(indexTemplate, table))
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return results.Close()
	})
}

// BulkWrite copies records into the class table in one transaction. IDs and CreatedAt are
// assigned in place when unset. Either every record is stored or none is.
func (r *Repository) BulkWrite(ctx context.Context, class ohlcv.AssetClass, records []ohlcv.Record) (int, error) {
	table, err := TableName(class)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]interface{}, 0, len(records))
	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		rows = append(rows, []interface{}{
			records[i].ID,
			records[i].Symbol,
			records[i].Timestamp,
			records[i].Open,
			records[i].High,
			records[i].Low,
			records[i].Close,
			records[i].Volume,
			records[i].CreatedAt,
		})
	}

	var copied int64
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, recordColumns, pgx.CopyFromRows(rows))
		copied = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return int(copied), nil
}

// Query returns records of q.Symbol newest first. Zero From/To are not applied.
func (r *Repository) Query(ctx context.Context, class ohlcv.AssetClass, q ohlcv.Query) ([]ohlcv.Record, error) {
	table, err := TableName(class)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	where := []string{"symbol = $1"}
	args := []interface{}{q.Symbol}
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, fmt.Sprintf(`"timestamp" >= $%d`, len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, fmt.Sprintf(`"timestamp" <= $%d`, len(args)))
	}
	args = append(args, q.Limit)

	query := fmt.Sprintf(`
		SELECT id, symbol, "timestamp", open, high, low, close, volume, created_at
		FROM %s
		WHERE %s
		ORDER BY "timestamp" DESC
		LIMIT $%d`, table, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ohlcv.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats counts rows and distinct symbols of every class table.
func (r *Repository) Stats(ctx context.Context) (map[ohlcv.AssetClass]ohlcv.Stats, error) {
	out := make(map[ohlcv.AssetClass]ohlcv.Stats, len(tables))
	for class, table := range tables {
		var st ohlcv.Stats
		query := fmt.Sprintf(`SELECT count(*), count(DISTINCT symbol) FROM %s`, table)
		if err := r.pool.QueryRow(ctx, query).Scan(&st.TotalRecords, &st.SymbolsCount); err != nil {
			return nil, fmt.Errorf("stats %s: %w", table, err)
		}
		out[class] = st
	}
	return out, nil
}

func scanRecord(row pgx.Row) (ohlcv.Record, error) {
	var rec ohlcv.Record
	if err := row.Scan(
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
		return ohlcv.Record{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
