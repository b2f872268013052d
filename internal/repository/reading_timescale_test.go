package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"greenhouse_control/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---- Test doubles ----

type execCall struct {
	sql  string
	args []any
}

type fakePgxRow struct {
	exists bool
	err    error
}

func (r fakePgxRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.exists
	return nil
}

// fakePgxRows serves pre-built records through the pgx.Rows interface.
type fakePgxRows struct {
	recs []models.TelemetryRecord
	i    int
}

func (r *fakePgxRows) Close()                                       {}
func (r *fakePgxRows) Err() error                                   { return nil }
func (r *fakePgxRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakePgxRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakePgxRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakePgxRows) RawValues() [][]byte                          { return nil }
func (r *fakePgxRows) Conn() *pgx.Conn                              { return nil }

func (r *fakePgxRows) Next() bool {
	r.i++
	return r.i <= len(r.recs)
}

func (r *fakePgxRows) Scan(dest ...any) error {
	rec := r.recs[r.i-1]
	*dest[0].(*time.Time) = rec.RecordedAt
	*dest[1].(*string) = rec.NodeID
	*dest[2].(*int) = rec.RSSI
	*dest[3].(*float64) = rec.Reading.TemperatureC
	*dest[4].(*float64) = rec.Reading.HumidityPct
	*dest[5].(*int32) = int32(rec.Reading.Light)
	*dest[6].(*float64) = rec.Reading.CO2PPM
	*dest[7].(*float64) = rec.Reading.SoilPct
	*dest[8].(*float64) = rec.Reading.VoltageV
	*dest[9].(*string) = rec.State.String()
	return nil
}

type fakePgxConn struct {
	row     fakePgxRow
	rows    *fakePgxRows
	execErr error
	execs   []execCall
	queries []execCall
	closed  bool
}

func (c *fakePgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), c.execErr
}

func (c *fakePgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.queries = append(c.queries, execCall{sql: sql, args: args})
	return c.rows, nil
}

func (c *fakePgxConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.row
}

func (c *fakePgxConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// ---- Tests ----

func TestNewReadingTimescale_TableName(t *testing.T) {
	tests := []struct {
		table   string
		wantErr bool
	}{
		{"", false},
		{"greenhouse_telemetry", false},
		{"telemetry; DROP TABLE operators", true},
		{"Upper", true},
	}
	for _, tc := range tests {
		_, err := newReadingTimescale(&fakePgxConn{}, tc.table)
		if (err != nil) != tc.wantErr {
			t.Errorf("table %q: err = %v", tc.table, err)
		}
		if tc.wantErr && !errors.Is(err, errBadTableName) {
			t.Errorf("table %q: want errBadTableName, got %v", tc.table, err)
		}
	}
}

func TestReadingTimescale_InitializeTable(t *testing.T) {
	t.Run("existing table is left alone", func(t *testing.T) {
		conn := &fakePgxConn{row: fakePgxRow{exists: true}}
		r, _ := newReadingTimescale(conn, "telemetry")
		if err := r.InitializeTable(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(conn.execs) != 0 {
			t.Fatalf("unexpected statements %+v", conn.execs)
		}
	})

	t.Run("missing table is created as hypertable", func(t *testing.T) {
		conn := &fakePgxConn{}
		r, _ := newReadingTimescale(conn, "telemetry")
		if err := r.InitializeTable(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(conn.execs) != 2 {
			t.Fatalf("want create + hypertable, got %d statements", len(conn.execs))
		}
		if !strings.Contains(conn.execs[0].sql, "CREATE TABLE telemetry") {
			t.Errorf("first statement: %s", conn.execs[0].sql)
		}
		if !strings.Contains(conn.execs[1].sql, "create_hypertable") {
			t.Errorf("second statement: %s", conn.execs[1].sql)
		}
	})

	t.Run("lookup error", func(t *testing.T) {
		conn := &fakePgxConn{row: fakePgxRow{err: errors.New("conn refused")}}
		r, _ := newReadingTimescale(conn, "telemetry")
		if err := r.InitializeTable(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestReadingTimescale_AppendAndList(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := models.TelemetryRecord{
		RecordedAt: at,
		NodeID:     "sensor-1",
		RSSI:       -72,
		Reading:    models.Reading{TemperatureC: 29, Light: 512, SoilPct: 45, VoltageV: 7},
		State:      models.StateSensorAlert,
	}
	conn := &fakePgxConn{rows: &fakePgxRows{recs: []models.TelemetryRecord{rec}}}
	r, _ := newReadingTimescale(conn, "telemetry")

	if err := r.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	args := conn.execs[0].args
	if len(args) != 10 || args[1] != "sensor-1" || args[9] != "SENSOR_ALERT" {
		t.Fatalf("unexpected insert args %v", args)
	}

	got, err := r.List(context.Background(), at.Add(-time.Hour), at, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Reading.Light != 512 || got[0].State != models.StateSensorAlert {
		t.Fatalf("unexpected rows %+v", got)
	}
	if q := conn.queries[0]; q.args[2] != DefaultListLimit {
		t.Errorf("limit arg = %v", q.args[2])
	}

	conn.execErr = errors.New("read-only transaction")
	if err := r.Append(context.Background(), rec); err == nil {
		t.Fatal("expected insert error")
	}
	if err := r.Close(context.Background()); err != nil || !conn.closed {
		t.Fatal("close not forwarded")
	}
}
