package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	export "quarterhour-export/internal/export/domain"
)

const defaultMeasurementsTable = "quarterhour_measurements"

// Source reads quarter-hour measurements from Postgres.
//
// Expected table shape:
//
//	magnitude TEXT, file_name TEXT, day_key CHAR(8), slot SMALLINT,
//	pod TEXT, meas_type TEXT, val DOUBLE PRECISION
type Source struct {
	db    *sql.DB
	table string
}

// SourceOption configures the source.
type SourceOption func(*Source)

// WithTable overrides the measurements table name.
func WithTable(table string) SourceOption {
	return func(s *Source) {
		if s != nil && table != "" {
			s.table = table
		}
	}
}

// NewSource constructs a source.
func NewSource(db *sql.DB, opts ...SourceOption) (*Source, error) {
	if db == nil {
		return nil, errors.New("postgres source: nil db")
	}
	s := &Source{db: db, table: defaultMeasurementsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DistinctPODs returns the PODs of the selection in [from, to), ascending
// by byte order so the result matches the Mongo source ordering.
func (s *Source) DistinctPODs(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT pod
FROM %s
WHERE magnitude = $1 AND file_name = $2 AND day_key >= $3 AND day_key < $4
ORDER BY pod COLLATE "C" ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, sel.Magnitude, sel.FileName, fromDayKey, toDayKey)
	if err != nil {
		return nil, fmt.Errorf("postgres source: distinct pods: %w", err)
	}
	defer rows.Close()

	var pods []string
	for rows.Next() {
		var pod string
		if err := rows.Scan(&pod); err != nil {
			return nil, fmt.Errorf("postgres source: scan pod: %w", err)
		}
		pods = append(pods, pod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres source: distinct pods: %w", err)
	}
	return pods, nil
}

// HasMeasurements probes for a single matching row.
func (s *Source) HasMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string) (bool, error) {
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE magnitude = $1 AND file_name = $2 AND day_key >= $3 AND day_key < $4 AND pod = ANY($5)
)`, s.table)

	var found bool
	if err := s.db.QueryRowContext(ctx, query, sel.Magnitude, sel.FileName, fromDayKey, toDayKey, pods).Scan(&found); err != nil {
		return false, fmt.Errorf("postgres source: probe: %w", err)
	}
	return found, nil
}

// StreamMeasurements scans matching rows ordered by (day, slot, pod, type).
func (s *Source) StreamMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string, fn func(export.MeasurementTuple) error) error {
	query := fmt.Sprintf(`
SELECT day_key, slot, pod, meas_type, val
FROM %s
WHERE magnitude = $1 AND file_name = $2 AND day_key >= $3 AND day_key < $4 AND pod = ANY($5)
ORDER BY day_key ASC, slot ASC, pod COLLATE "C" ASC, meas_type COLLATE "C" ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, sel.Magnitude, sel.FileName, fromDayKey, toDayKey, pods)
	if err != nil {
		return fmt.Errorf("postgres source: measurements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tuple export.MeasurementTuple
		var value sql.NullFloat64
		if err := rows.Scan(&tuple.DayKey, &tuple.Slot, &tuple.POD, &tuple.MeasType, &value); err != nil {
			return fmt.Errorf("postgres source: scan measurement: %w", err)
		}
		if !value.Valid {
			continue
		}
		tuple.Value = value.Float64
		if err := fn(tuple); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres source: measurements: %w", err)
	}
	return nil
}
