// Package candles persists historical candle series in DuckDB. The store
// feeds the replay engine and the deploy gate; the live scheduler reads
// candles straight from the broker instead.
package candles

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// Store is a DuckDB-backed candle archive. Use ":memory:" as the path for an
// ephemeral store in tests.
type Store struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewStore opens (or creates) the database at path and ensures the candles
// table exists.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open candle store", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL
		)
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to create candles table", err)
	}

	return &Store{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write appends candles inside one transaction.
func (s *Store) Write(candles []types.Candle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO candles (instrument, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to prepare insert", err)
	}

	defer stmt.Close()

	for _, candle := range candles {
		_, err := stmt.Exec(
			candle.Instrument,
			candle.Time,
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume,
		)
		if err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeImportFailed, "failed to insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit candles", err)
	}

	return nil
}

// ImportCSV bulk-loads a CSV file through DuckDB's reader. The file must
// carry instrument, time, open, high, low, close, volume columns.
func (s *Store) ImportCSV(path string) (int, error) {
	s.log.Debug("importing candle csv", zap.String("path", path))

	result, err := s.db.Exec(`
		INSERT INTO candles
		SELECT instrument, time, open, high, low, close, volume
		FROM read_csv_auto(?)
	`, path)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeImportFailed, err, "failed to import %s", path)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return int(rows), nil
}

// Instruments returns the distinct instruments in the store, sorted.
func (s *Store) Instruments() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT instrument FROM candles ORDER BY instrument`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list instruments", err)
	}

	defer rows.Close()

	var instruments []string

	for rows.Next() {
		var instrument string
		if err := rows.Scan(&instrument); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan instrument", err)
		}

		instruments = append(instruments, instrument)
	}

	return instruments, rows.Err()
}

// Count returns the number of candles stored for the instrument.
func (s *Store) Count(instrument string) (int, error) {
	query, args, err := s.sq.
		Select("COUNT(*)").
		From("candles").
		Where(squirrel.Eq{"instrument": instrument}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// GetRange returns the instrument's candles inside the optional time bounds,
// oldest first.
func (s *Store) GetRange(instrument string, start, end optional.Option[time.Time]) ([]types.Candle, error) {
	builder := s.sq.
		Select("instrument", "time", "open", "high", "low", "close", "volume").
		From("candles").
		Where(squirrel.Eq{"instrument": instrument}).
		OrderBy("time ASC")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build range query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query candles", err)
	}

	defer rows.Close()

	var candles []types.Candle

	for rows.Next() {
		var candle types.Candle

		err := rows.Scan(
			&candle.Instrument,
			&candle.Time,
			&candle.Open,
			&candle.High,
			&candle.Low,
			&candle.Close,
			&candle.Volume,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle", err)
		}

		candle.Time = candle.Time.UTC()
		candles = append(candles, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read candles", err)
	}

	if len(candles) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no candles stored for %s", instrument)
	}

	return candles, nil
}

// GetAll returns every instrument's full series keyed by instrument.
func (s *Store) GetAll() (map[string][]types.Candle, error) {
	instruments, err := s.Instruments()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]types.Candle, len(instruments))

	for _, instrument := range instruments {
		series, err := s.GetRange(instrument, optional.None[time.Time](), optional.None[time.Time]())
		if err != nil {
			return nil, err
		}

		out[instrument] = series
	}

	return out, nil
}
