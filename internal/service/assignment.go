package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres/repository"
)

var (
	// ErrQuizInactive is returned when an admin tries to assign a deactivated quiz.
	ErrQuizInactive = errors.New("quiz is not active")
	// ErrQuizCompleted is returned when an admin tries to assign a quiz the user
	// has already completed.
	ErrQuizCompleted = errors.New("quiz already completed by user")
)

// AssignmentService exposes the engine's request-time operations: the
// active-quiz selector, admin manual assignment, pending removal, quiz
// completion and orphan diagnostics.
type AssignmentService struct {
	quizzes QuizCatalog
	users   UserDirectory
	ledger  AssignmentLedger
	logger  *zap.Logger
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(
	quizzes QuizCatalog,
	users UserDirectory,
	ledger AssignmentLedger,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		quizzes: quizzes,
		users:   users,
		ledger:  ledger,
		logger:  logger,
	}
}

// GetActiveQuizForUser returns the single quiz the user should currently be
// presented, or (nil, nil) when none is eligible. Pending entries are walked
// oldest-first; every policy that can change after assignment is re-evaluated
// here against live data: quiz existence, quiz activity and the time-frame
// policy against the user's current window status.
func (s *AssignmentService) GetActiveQuizForUser(ctx context.Context, userID uuid.UUID) (*entities.QuizDefinition, error) {
	now := time.Now().UTC()

	user, err := s.users.GetByID(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	pending, err := s.ledger.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending quizzes: %w", err)
	}

	// Oldest assignment wins when several entries are eligible.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].AssignedAt.Before(pending[j].AssignedAt)
	})

	for _, entry := range pending {
		if !entry.IsAvailable {
			continue
		}

		quiz, err := s.quizzes.GetByID(ctx, entry.QuizID)
		if err != nil {
			if errors.Is(err, repository.ErrQuizNotFound) {
				// Orphaned entry: the definition is gone. Inert, kept for
				// admin diagnostics, never selected.
				s.logger.Warn("pending entry references missing quiz",
					zap.String("user_id", userID.String()),
					zap.String("quiz_id", entry.QuizID.String()),
				)
				continue
			}
			return nil, fmt.Errorf("get quiz: %w", err)
		}

		if !quiz.IsActive {
			s.logger.Debug("pending entry references inactive quiz",
				zap.String("user_id", userID.String()),
				zap.String("quiz_id", entry.QuizID.String()),
			)
			continue
		}

		if !quiz.AllowsNow(user.ActiveWindow.IsWithinWindow) {
			continue
		}

		return quiz, nil
	}

	return nil, nil
}

// AssignQuizManually creates a pending entry for the user by direct admin
// action. Manual assignment is immediate and unconditional: it bypasses the
// trigger delay and the time-frame policy, and may re-introduce a quiz the user
// previously skipped. It fails when the quiz is inactive or already completed;
// an already-pending quiz is an idempotent no-op returning the existing entry.
func (s *AssignmentService) AssignQuizManually(ctx context.Context, userID, quizID, assignedBy uuid.UUID) (*entities.PendingQuiz, error) {
	now := time.Now().UTC()

	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if !quiz.IsActive {
		return nil, ErrQuizInactive
	}

	if _, err := s.users.GetByID(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	completed, err := s.ledger.HasCompleted(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("check quiz completed: %w", err)
	}
	if completed {
		return nil, ErrQuizCompleted
	}

	pending := entities.NewPendingQuiz(userID, quizID, entities.AssignmentAdminManual, now)
	pending.AssignedBy = &assignedBy

	created, err := s.ledger.AddPendingIfAbsent(ctx, pending, true)
	if err != nil {
		return nil, fmt.Errorf("add pending quiz: %w", err)
	}
	if !created {
		// Already pending: return the existing entry unchanged.
		existing, err := s.ledger.GetPending(ctx, userID, quizID)
		if err != nil {
			return nil, fmt.Errorf("get pending quiz: %w", err)
		}
		return existing, nil
	}

	s.logger.Info("quiz assigned manually",
		zap.String("user_id", userID.String()),
		zap.String("quiz_id", quizID.String()),
		zap.String("assigned_by", assignedBy.String()),
	)

	return pending, nil
}

// RemovePendingQuiz removes a pending entry. With recordSkip the quiz lands in
// the user's skipped set and the sweep will never re-assign it.
func (s *AssignmentService) RemovePendingQuiz(ctx context.Context, userID, quizID uuid.UUID, recordSkip bool) error {
	now := time.Now().UTC()

	if err := s.ledger.RemovePending(ctx, userID, quizID, recordSkip, now); err != nil {
		return fmt.Errorf("remove pending quiz: %w", err)
	}

	s.logger.Info("pending quiz removed",
		zap.String("user_id", userID.String()),
		zap.String("quiz_id", quizID.String()),
		zap.Bool("record_skip", recordSkip),
	)

	return nil
}

// CompleteQuiz records that the user finished a quiz, moving it from pending to
// completed and storing the submitted answers. Completing the same quiz twice
// is a no-op the second time.
func (s *AssignmentService) CompleteQuiz(ctx context.Context, userID, quizID uuid.UUID, answers []entities.QuizAnswer) error {
	now := time.Now().UTC()

	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}

	if err := s.ledger.MarkCompleted(ctx, userID, quizID, now, answers); err != nil {
		return fmt.Errorf("mark quiz completed: %w", err)
	}

	s.logger.Info("quiz completed",
		zap.String("user_id", userID.String()),
		zap.String("quiz_id", quizID.String()),
		zap.Int("answers", len(answers)),
	)

	return nil
}

// ListOrphanedPending reports every pending entry whose quiz definition was
// deleted or deactivated, for admin diagnostics.
func (s *AssignmentService) ListOrphanedPending(ctx context.Context) ([]*entities.OrphanedPending, error) {
	orphaned, err := s.ledger.ListOrphanedPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orphaned pending: %w", err)
	}

	return orphaned, nil
}
