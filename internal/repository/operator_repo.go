package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"greenhouse_control/internal/models"
)

// OperatorSQLite stores operator accounts for the control API.
type OperatorSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db, now: time.Now}
}

var _ Authorization = (*OperatorSQLite)(nil)

const sqliteTimeLayout = "2006-01-02 15:04:05"

const (
	insertOperatorSQL     = `INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`
	selectOperatorSQL     = `SELECT id, username, password_hash, created_at, last_sign_in FROM operators WHERE username = ?`
	updateLastSignInSQL   = `UPDATE operators SET last_sign_in = ? WHERE id = ?`
	errOperatorNotUpdated = "operator %d not found"
)

// Create inserts a new operator and returns its ID.
func (r *OperatorSQLite) Create(username, passwordHash string) (int, error) {
	res, err := r.db.Exec(insertOperatorSQL, username, passwordHash, r.now().UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for operator %q: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns (nil, nil) when no such operator exists.
func (r *OperatorSQLite) GetByUsername(username string) (*models.Operator, error) {
	var (
		op       models.Operator
		lastSeen sql.NullTime
	)
	err := r.db.QueryRow(selectOperatorSQL, username).
		Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	if lastSeen.Valid {
		t := lastSeen.Time.UTC()
		op.LastSignIn = &t
	}
	return &op, nil
}

// TouchSignIn stamps the operator's last successful sign-in.
func (r *OperatorSQLite) TouchSignIn(id int, at time.Time) error {
	res, err := r.db.Exec(updateLastSignInSQL, at.UTC().Format(sqliteTimeLayout), id)
	if err != nil {
		return fmt.Errorf("update last sign-in: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf(errOperatorNotUpdated, id)
	}
	return nil
}
