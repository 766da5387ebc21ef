package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres"
)

var ErrPendingNotFound = errors.New("pending quiz not found")

// LedgerRepository owns the per-user assignment ledger: pending, completed and
// skipped quiz records. Every table is keyed on (user_id, quiz_id), so the
// "at most one entry per quiz" invariant is enforced by the schema, and the
// conditional insert stays correct under concurrent sweep instances without
// any external locking.
type LedgerRepository struct {
	db         postgres.DBTX
	transactor *postgres.Transactor
}

// NewLedgerRepository creates a new LedgerRepository over the provided pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{
		db:         pool,
		transactor: postgres.NewTransactor(pool),
	}
}

// HasOutcome reports whether the quiz already has any outcome for the user:
// pending, completed or skipped. The sweep uses this as its first gate.
func (r *LedgerRepository) HasOutcome(ctx context.Context, userID, quizID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM user_pending_quizzes WHERE user_id = $1 AND quiz_id = $2)
		    OR EXISTS(SELECT 1 FROM user_completed_quizzes WHERE user_id = $1 AND quiz_id = $2)
		    OR EXISTS(SELECT 1 FROM user_skipped_quizzes WHERE user_id = $1 AND quiz_id = $2)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, quizID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check quiz outcome: %w", err)
	}

	return exists, nil
}

// HasCompleted reports whether the user has completed the quiz.
func (r *LedgerRepository) HasCompleted(ctx context.Context, userID, quizID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_completed_quizzes WHERE user_id = $1 AND quiz_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, quizID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check quiz completed: %w", err)
	}

	return exists, nil
}

// AddPendingIfAbsent inserts a pending entry unless the quiz already has an
// outcome for the user. The guard and the insert are a single statement, so two
// sweep instances racing on the same (user, quiz) pair cannot both create the
// entry; the loser observes created=false, which is not an error.
//
// overrideSkip lifts the skipped-quizzes guard for admin manual assignment,
// which may re-introduce a quiz the user previously skipped. The completed
// guard always applies.
func (r *LedgerRepository) AddPendingIfAbsent(ctx context.Context, pending *entities.PendingQuiz, overrideSkip bool) (bool, error) {
	query := `
		INSERT INTO user_pending_quizzes (
			user_id, quiz_id, assigned_at, assigned_by, assignment_type, is_available
		)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM user_completed_quizzes WHERE user_id = $1 AND quiz_id = $2
		)
		AND ($7 OR NOT EXISTS (
			SELECT 1 FROM user_skipped_quizzes WHERE user_id = $1 AND quiz_id = $2
		))
		ON CONFLICT (user_id, quiz_id) DO NOTHING
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		pending.UserID,
		pending.QuizID,
		pending.AssignedAt,
		pending.AssignedBy,
		pending.AssignmentType,
		pending.IsAvailable,
		overrideSkip,
	)
	if err != nil {
		return false, fmt.Errorf("add pending quiz: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetPending retrieves a single pending entry.
func (r *LedgerRepository) GetPending(ctx context.Context, userID, quizID uuid.UUID) (*entities.PendingQuiz, error) {
	query := `
		SELECT user_id, quiz_id, assigned_at, assigned_by, assignment_type, is_available
		FROM user_pending_quizzes
		WHERE user_id = $1 AND quiz_id = $2
	`

	pending, err := scanPending(r.db.QueryRow(ctx, query, userID, quizID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("get pending quiz: %w", err)
	}

	return pending, nil
}

// ListPending returns the user's pending entries, oldest assignment first.
func (r *LedgerRepository) ListPending(ctx context.Context, userID uuid.UUID) ([]*entities.PendingQuiz, error) {
	query := `
		SELECT user_id, quiz_id, assigned_at, assigned_by, assignment_type, is_available
		FROM user_pending_quizzes
		WHERE user_id = $1
		ORDER BY assigned_at, quiz_id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending quizzes: %w", err)
	}
	defer rows.Close()

	var pending []*entities.PendingQuiz
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending quiz: %w", err)
		}
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// ListCompleted returns the user's completed quiz records in storage order;
// callers that care about completion order recompute it themselves.
func (r *LedgerRepository) ListCompleted(ctx context.Context, userID uuid.UUID) ([]entities.CompletedQuiz, error) {
	query := `
		SELECT user_id, quiz_id, completed_at
		FROM user_completed_quizzes
		WHERE user_id = $1
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list completed quizzes: %w", err)
	}
	defer rows.Close()

	var completed []entities.CompletedQuiz
	for rows.Next() {
		var c entities.CompletedQuiz
		if err := rows.Scan(&c.UserID, &c.QuizID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completed quiz: %w", err)
		}
		completed = append(completed, c)
	}

	return completed, rows.Err()
}

// MarkCompleted moves a quiz from pending to completed and records the answers,
// all in one transaction. Calling it twice for the same (user, quiz) pair is a
// no-op the second time: the completed insert conflicts, so no duplicate
// completion and no duplicate answers are written.
func (r *LedgerRepository) MarkCompleted(ctx context.Context, userID, quizID uuid.UUID, completedAt time.Time, answers []entities.QuizAnswer) error {
	return r.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_completed_quizzes (user_id, quiz_id, completed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, quiz_id) DO NOTHING
		`, userID, quizID, completedAt)
		if err != nil {
			return fmt.Errorf("insert completed quiz: %w", err)
		}

		if tag.RowsAffected() == 1 {
			for _, a := range answers {
				_, err := tx.Exec(ctx, `
					INSERT INTO quiz_answers (user_id, quiz_id, question, response, answered_at)
					VALUES ($1, $2, $3, $4, $5)
				`, userID, quizID, a.Question, a.Response, completedAt)
				if err != nil {
					return fmt.Errorf("insert quiz answer: %w", err)
				}
			}
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM user_pending_quizzes WHERE user_id = $1 AND quiz_id = $2
		`, userID, quizID); err != nil {
			return fmt.Errorf("delete pending quiz: %w", err)
		}

		return nil
	})
}

// RemovePending deletes a pending entry. With recordSkip the quiz is added to
// the user's skipped set in the same transaction, which blocks the sweep from
// ever re-assigning it. Returns ErrPendingNotFound when nothing was pending.
func (r *LedgerRepository) RemovePending(ctx context.Context, userID, quizID uuid.UUID, recordSkip bool, skippedAt time.Time) error {
	return r.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM user_pending_quizzes WHERE user_id = $1 AND quiz_id = $2
		`, userID, quizID)
		if err != nil {
			return fmt.Errorf("delete pending quiz: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPendingNotFound
		}

		if recordSkip {
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_skipped_quizzes (user_id, quiz_id, skipped_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, quiz_id) DO NOTHING
			`, userID, quizID, skippedAt); err != nil {
				return fmt.Errorf("insert skipped quiz: %w", err)
			}
		}

		return nil
	})
}

// ListOrphanedPending returns every pending entry whose quiz definition was
// deleted or deactivated, for admin diagnostics. The entries themselves are
// left untouched.
func (r *LedgerRepository) ListOrphanedPending(ctx context.Context) ([]*entities.OrphanedPending, error) {
	query := `
		SELECT p.user_id, p.quiz_id, p.assigned_at,
		       CASE WHEN q.id IS NULL THEN $1::text ELSE $2::text END AS reason
		FROM user_pending_quizzes p
		LEFT JOIN quizzes q ON q.id = p.quiz_id
		WHERE q.id IS NULL OR q.is_active = false
		ORDER BY p.assigned_at, p.user_id, p.quiz_id
	`

	rows, err := r.db.Query(ctx, query, entities.OrphanQuizMissing, entities.OrphanQuizInactive)
	if err != nil {
		return nil, fmt.Errorf("list orphaned pending: %w", err)
	}
	defer rows.Close()

	var orphaned []*entities.OrphanedPending
	for rows.Next() {
		var o entities.OrphanedPending
		if err := rows.Scan(&o.UserID, &o.QuizID, &o.AssignedAt, &o.Reason); err != nil {
			return nil, fmt.Errorf("scan orphaned pending: %w", err)
		}
		orphaned = append(orphaned, &o)
	}

	return orphaned, rows.Err()
}

// PurgeMissingQuizPending deletes pending entries whose quiz definition no
// longer exists at all. Entries for merely deactivated quizzes are kept, since
// the quiz may be reactivated.
func (r *LedgerRepository) PurgeMissingQuizPending(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM user_pending_quizzes p
		WHERE NOT EXISTS (SELECT 1 FROM quizzes q WHERE q.id = p.quiz_id)
	`

	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("purge missing-quiz pending: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanPending(row pgx.Row) (*entities.PendingQuiz, error) {
	var pending entities.PendingQuiz
	var assignedBy pgtype.UUID

	err := row.Scan(
		&pending.UserID,
		&pending.QuizID,
		&pending.AssignedAt,
		&assignedBy,
		&pending.AssignmentType,
		&pending.IsAvailable,
	)
	if err != nil {
		return nil, err
	}

	if assignedBy.Valid {
		id := uuid.UUID(assignedBy.Bytes)
		pending.AssignedBy = &id
	}

	return &pending, nil
}
