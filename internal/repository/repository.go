package repository

import (
	"context"
	"database/sql"
	"time"

	"greenhouse_control/internal/models"
)

// Authorization stores operator accounts.
type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
	TouchSignIn(id int, at time.Time) error
}

// ReadingRepo is the periodic telemetry log.
type ReadingRepo interface {
	Append(ctx context.Context, r models.TelemetryRecord) error
	List(ctx context.Context, from, to time.Time, limit int) ([]models.TelemetryRecord, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	Readings ReadingRepo
	Events   EventRepo
	Auth     Authorization
}

// NewRepository backs every store with the same SQLite handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Readings: NewReadingSQLite(db),
		Events:   NewEventSQLite(db),
		Auth:     NewOperatorSQLite(db),
	}
}
