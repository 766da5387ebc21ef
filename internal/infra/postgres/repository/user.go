package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository provides read access to user accounts. The active-window
// boolean is recomputed from the stored window bounds on every read; the engine
// never sees a stale precomputed value.
type UserRepository struct {
	db postgres.DBTX
}

// NewUserRepository creates a new UserRepository with the provided database pool.
func NewUserRepository(db postgres.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, is_active, registered_at, window_starts_at, window_ends_at
`

// GetByID retrieves a user by id, with the active-window status evaluated at
// the given instant.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, userID), now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// ListActiveBatch returns a page of active users ordered by id, with their
// active-window status evaluated at the given instant. The sweep walks the
// whole user base through this in LIMIT/OFFSET pages.
func (r *UserRepository) ListActiveBatch(ctx context.Context, now time.Time, limit, offset int) ([]*entities.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active = true
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active users batch: %w", err)
	}
	defer rows.Close()

	var users []*entities.User
	for rows.Next() {
		user, err := scanUser(rows, now)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func scanUser(row pgx.Row, now time.Time) (*entities.User, error) {
	var user entities.User
	var windowStart pgtype.Timestamptz
	var windowEnd pgtype.Timestamptz

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.IsActive,
		&user.RegisteredAt,
		&windowStart,
		&windowEnd,
	)
	if err != nil {
		return nil, err
	}

	if windowStart.Valid {
		t := windowStart.Time
		user.ActiveWindow.StartsAt = &t
	}
	if windowEnd.Valid {
		t := windowEnd.Time
		user.ActiveWindow.EndsAt = &t
	}
	user.ActiveWindow.IsWithinWindow = withinWindow(user.ActiveWindow, now)

	return &user, nil
}

// withinWindow reports whether now falls inside the configured window. A user
// with no configured window is never "within" it.
func withinWindow(w entities.ActiveWindow, now time.Time) bool {
	if w.StartsAt == nil || w.EndsAt == nil {
		return false
	}
	return !now.Before(*w.StartsAt) && now.Before(*w.EndsAt)
}
