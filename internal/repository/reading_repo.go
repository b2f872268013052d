package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"greenhouse_control/internal/models"
)

// DefaultListLimit caps history queries that do not set a limit.
const DefaultListLimit = 500

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	insertTelemetrySQL = `
		INSERT INTO telemetry (recorded_at, node_id, rssi, temperature_c, humidity_pct, light, co2_ppm, soil_pct, voltage_v, system_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectTelemetrySQL = `SELECT id, recorded_at, node_id, rssi, temperature_c, humidity_pct, light, co2_ppm, soil_pct, voltage_v, system_state FROM telemetry`
)

// Append writes one telemetry row. A zero RecordedAt is set to now.
func (r *ReadingSQLite) Append(ctx context.Context, rec models.TelemetryRecord) error {
	ts := rec.RecordedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertTelemetrySQL,
		ts.Format("2006-01-02 15:04:05"),
		rec.NodeID,
		rec.RSSI,
		rec.Reading.TemperatureC,
		rec.Reading.HumidityPct,
		int64(rec.Reading.Light),
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

// List returns rows in [from, to], newest first, at most limit rows.
func (r *ReadingSQLite) List(ctx context.Context, from, to time.Time, limit int) ([]models.TelemetryRecord, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "recorded_at <= ?")
		args = append(args, to.UTC())
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := selectTelemetrySQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select telemetry: %w", err)
	}
	defer rows.Close()

	out := make([]models.TelemetryRecord, 0, 64)
	for rows.Next() {
		var (
			rec   models.TelemetryRecord
			light int64
			state string
		)
		if err := rows.Scan(
			&rec.ID,
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
