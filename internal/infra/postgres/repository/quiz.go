package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres"
)

var ErrQuizNotFound = errors.New("quiz not found")

// QuizRepository provides access to the quiz catalog in the database.
// The assignment engine only reads from it; the write side serves admin tooling.
type QuizRepository struct {
	db postgres.DBTX
}

// NewQuizRepository creates a new QuizRepository with the provided database pool.
func NewQuizRepository(db postgres.DBTX) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `
	id, title, is_active, trigger_type, delay_amount, delay_unit,
	legacy_delay_days, start_from, time_frame_handling, created_at, updated_at
`

// Create inserts a new quiz definition.
func (r *QuizRepository) Create(ctx context.Context, quiz *entities.QuizDefinition) error {
	query := `
		INSERT INTO quizzes (
			id, title, is_active, trigger_type, delay_amount, delay_unit,
			legacy_delay_days, start_from, time_frame_handling, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		quiz.ID,
		quiz.Title,
		quiz.IsActive,
		quiz.TriggerType,
		quiz.DelayAmount,
		string(quiz.DelayUnit),
		quiz.LegacyDelayDays,
		quiz.StartFrom,
		quiz.TimeFrameHandling,
		quiz.CreatedAt,
		quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}

	return nil
}

// GetByID retrieves a quiz definition by id.
func (r *QuizRepository) GetByID(ctx context.Context, quizID uuid.UUID) (*entities.QuizDefinition, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1`

	quiz, err := scanQuiz(r.db.QueryRow(ctx, query, quizID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	return quiz, nil
}

// ListActiveIntervalQuizzes returns every active quiz with a TIME_INTERVAL
// trigger. This is the sweep's candidate set.
func (r *QuizRepository) ListActiveIntervalQuizzes(ctx context.Context) ([]*entities.QuizDefinition, error) {
	query := `
		SELECT ` + quizColumns + `
		FROM quizzes
		WHERE is_active = true AND trigger_type = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, entities.TriggerTimeInterval)
	if err != nil {
		return nil, fmt.Errorf("list active interval quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []*entities.QuizDefinition
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}

	return quizzes, rows.Err()
}

// SetActive activates or deactivates a quiz. Deactivated quizzes are never
// assigned and pending entries referencing them become inert.
func (r *QuizRepository) SetActive(ctx context.Context, quizID uuid.UUID, isActive bool) error {
	query := `
		UPDATE quizzes
		SET is_active = $1, updated_at = now()
		WHERE id = $2
	`

	tag, err := r.db.Exec(ctx, query, isActive, quizID)
	if err != nil {
		return fmt.Errorf("set quiz active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuizNotFound
	}

	return nil
}

func scanQuiz(row pgx.Row) (*entities.QuizDefinition, error) {
	var quiz entities.QuizDefinition
	var delayUnit pgtype.Text

	err := row.Scan(
		&quiz.ID,
		&quiz.Title,
		&quiz.IsActive,
		&quiz.TriggerType,
		&quiz.DelayAmount,
		&delayUnit,
		&quiz.LegacyDelayDays,
		&quiz.StartFrom,
		&quiz.TimeFrameHandling,
		&quiz.CreatedAt,
		&quiz.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if delayUnit.Valid {
		quiz.DelayUnit = entities.DelayUnit(delayUnit.String)
	}

	return &quiz, nil
}
