package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"greenhouse_control/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errBadTableName = errors.New("invalid telemetry table name")

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// pgxConn is the part of *pgx.Conn the Timescale store uses.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// ReadingTimescale keeps the telemetry log in a TimescaleDB hypertable.
type ReadingTimescale struct {
	conn  pgxConn
	table string
}

var _ ReadingRepo = (*ReadingTimescale)(nil)

// NewReadingTimescale connects to dsn and makes sure the hypertable exists.
func NewReadingTimescale(ctx context.Context, dsn, table string) (*ReadingTimescale, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}
	r, err := newReadingTimescale(conn, table)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	if err := r.InitializeTable(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return r, nil
}

func newReadingTimescale(conn pgxConn, table string) (*ReadingTimescale, error) {
	if table == "" {
		table = "telemetry"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", errBadTableName, table)
	}
	return &ReadingTimescale{conn: conn, table: table}, nil
}

// Close closes the connection.
func (r *ReadingTimescale) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

// InitializeTable creates the table and converts it to a hypertable if it does not exist yet.
func (r *ReadingTimescale) InitializeTable(ctx context.Context) error {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, r.table).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check table %s: %w", r.table, err)
	}
	if exists {
		return nil
	}

	if _, err := r.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			time TIMESTAMPTZ NOT NULL,
			node_id TEXT NOT NULL,
			rssi INTEGER NOT NULL DEFAULT 0,
			temperature_c DOUBLE PRECISION,
			humidity_pct DOUBLE PRECISION,
			light INTEGER,
			co2_ppm DOUBLE PRECISION,
			soil_pct DOUBLE PRECISION,
			voltage_v DOUBLE PRECISION,
			system_state TEXT NOT NULL
		)
	`, r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	if _, err := r.conn.Exec(ctx, `SELECT create_hypertable($1, 'time')`, r.table); err != nil {
		return fmt.Errorf("create hypertable %s: %w", r.table, err)
	}
	return nil
}

// Append writes one telemetry row.
func (r *ReadingTimescale) Append(ctx context.Context, rec models.TelemetryRecord) error {
	ts := rec.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.conn.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (time, node_id, rssi, temperature_c, humidity_pct, light, co2_ppm, soil_pct, voltage_v, system_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.table),
		ts.UTC(),
		rec.NodeID,
		rec.RSSI,
		rec.Reading.TemperatureC,
		rec.Reading.HumidityPct,
		int32(rec.Reading.Light),
		rec.Reading.CO2PPM,
		rec.Reading.SoilPct,
		rec.Reading.VoltageV,
		rec.State.String(),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// List returns rows in [from, to], newest first. Hypertable rows have no
// surrogate key, so ID is left zero.
func (r *ReadingTimescale) List(ctx context.Context, from, to time.Time, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if to.IsZero() {
		to = time.Now()
	}
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT time, node_id, rssi, temperature_c, humidity_pct, light, co2_ppm, soil_pct, voltage_v, system_state
		FROM %s
		WHERE time >= $1 AND time <= $2
		ORDER BY time DESC
		LIMIT $3
	`, r.table), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("select telemetry: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetryRecord
	for rows.Next() {
		var (
			rec   models.TelemetryRecord
			light int32
			state string
		)
		if err := rows.Scan(
			&rec.RecordedAt,
			&rec.NodeID,
			&rec.RSSI,
			&rec.Reading.TemperatureC,
			&rec.Reading.HumidityPct,
			&light,
			&rec.Reading.CO2PPM,
			&rec.Reading.SoilPct,
			&rec.Reading.VoltageV,
			&state,
		); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		rec.RecordedAt = rec.RecordedAt.UTC()
		rec.Reading.Light = uint16(light)
		rec.State, _ = models.ParseSystemState(state)
		out = append(out, rec)
	}
	return out, rows.Err()
}
