package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
)

// QuizCatalog is the read side of the quiz catalog store.
type QuizCatalog interface {
	GetByID(ctx context.Context, quizID uuid.UUID) (*entities.QuizDefinition, error)
	ListActiveIntervalQuizzes(ctx context.Context) ([]*entities.QuizDefinition, error)
}

// UserDirectory reads user accounts with the active-window status evaluated at
// the caller's clock instant.
type UserDirectory interface {
	GetByID(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.User, error)
	ListActiveBatch(ctx context.Context, now time.Time, limit, offset int) ([]*entities.User, error)
}

// AssignmentLedger manages the per-user pending/completed/skipped quiz records.
// Mutations are atomic at the store level; AddPendingIfAbsent in particular must
// be a conditional write, not read-modify-write, so concurrent sweeps stay safe.
type AssignmentLedger interface {
	HasOutcome(ctx context.Context, userID, quizID uuid.UUID) (bool, error)
	HasCompleted(ctx context.Context, userID, quizID uuid.UUID) (bool, error)
	AddPendingIfAbsent(ctx context.Context, pending *entities.PendingQuiz, overrideSkip bool) (bool, error)
	GetPending(ctx context.Context, userID, quizID uuid.UUID) (*entities.PendingQuiz, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]*entities.PendingQuiz, error)
	ListCompleted(ctx context.Context, userID uuid.UUID) ([]entities.CompletedQuiz, error)
	MarkCompleted(ctx context.Context, userID, quizID uuid.UUID, completedAt time.Time, answers []entities.QuizAnswer) error
	RemovePending(ctx context.Context, userID, quizID uuid.UUID, recordSkip bool, skippedAt time.Time) error
	ListOrphanedPending(ctx context.Context) ([]*entities.OrphanedPending, error)
	PurgeMissingQuizPending(ctx context.Context) (int64, error)
}
