package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
)

// SweepConfig are the deployment parameters of the auto-assignment sweep.
type SweepConfig struct {
	Interval        time.Duration // how often the sweep runs
	UserBatchSize   int           // users fetched per page while walking the user base
	CleanupOrphans  bool          // whether the orphan cleanup job is scheduled at all
	CleanupSchedule string        // cron spec for the cleanup job
}

// SweepService is the periodic batch process that turns eligible (user, quiz)
// pairs into pending entries. For every active interval-triggered quiz and
// every active user it resolves the reference date, computes the trigger
// instant, applies the time-frame policy and performs the ledger's conditional
// insert. A failure on one pair is logged and never aborts the rest of the
// batch; the next sweep re-evaluates every still-outstanding pair from scratch.
type SweepService struct {
	quizzes QuizCatalog
	users   UserDirectory
	ledger  AssignmentLedger
	logger  *zap.Logger
	cfg     SweepConfig
}

// NewSweepService creates a new sweep service.
func NewSweepService(
	quizzes QuizCatalog,
	users UserDirectory,
	ledger AssignmentLedger,
	logger *zap.Logger,
	cfg SweepConfig,
) *SweepService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.UserBatchSize <= 0 {
		cfg.UserBatchSize = 200
	}
	return &SweepService{
		quizzes: quizzes,
		users:   users,
		ledger:  ledger,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start begins the recurring sweep loop and blocks until the context is done.
func (s *SweepService) Start(ctx context.Context) {
	s.logger.Info("sweep service started", zap.Duration("interval", s.cfg.Interval))

	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() {
		if err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("sweep run failed", zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Error("failed to add sweep cron job", zap.Error(err))
		return
	}

	if s.cfg.CleanupOrphans {
		_, err := c.AddFunc(s.cfg.CleanupSchedule, func() {
			purged, err := s.ledger.PurgeMissingQuizPending(ctx)
			if err != nil {
				s.logger.Error("orphan cleanup failed", zap.Error(err))
				return
			}
			s.logger.Info("orphan cleanup finished", zap.Int64("purged", purged))
		})
		if err != nil {
			s.logger.Error("failed to add cleanup cron job", zap.Error(err))
			return
		}
	}

	c.Start()
	s.logger.Info("cron scheduler started")

	<-ctx.Done()

	c.Stop()
	s.logger.Info("sweep service stopped")
}

// RunOnce performs a single sweep over all (user, quiz) pairs at the given
// instant. It returns an error only when the candidate sets themselves cannot
// be fetched; per-pair failures are logged and skipped.
func (s *SweepService) RunOnce(ctx context.Context, now time.Time) error {
	quizzes, err := s.quizzes.ListActiveIntervalQuizzes(ctx)
	if err != nil {
		return fmt.Errorf("list active interval quizzes: %w", err)
	}
	if len(quizzes) == 0 {
		return nil
	}

	s.logger.Info("sweep started",
		zap.Time("now", now),
		zap.Int("quizzes", len(quizzes)),
	)

	totalAssigned := 0
	offset := 0
	for {
		users, err := s.users.ListActiveBatch(ctx, now, s.cfg.UserBatchSize, offset)
		if err != nil {
			return fmt.Errorf("list active users batch: %w", err)
		}
		if len(users) == 0 {
			break
		}

		totalAssigned += s.processBatch(ctx, users, quizzes, now)

		if len(users) < s.cfg.UserBatchSize {
			break
		}
		offset += s.cfg.UserBatchSize
	}

	s.logger.Info("sweep finished",
		zap.Time("now", now),
		zap.Int("total_assigned", totalAssigned),
	)

	return nil
}

// processBatch evaluates a page of users concurrently and returns how many
// pending entries were created.
func (s *SweepService) processBatch(
	ctx context.Context,
	users []*entities.User,
	quizzes []*entities.QuizDefinition,
	now time.Time,
) int {
	const maxConcurrent = 10
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	assigned := 0

	for _, user := range users {
		user := user
		wg.Add(1)
		sem <- struct{}{} // Acquire

		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release

			n := s.processUser(ctx, user, quizzes, now)

			mu.Lock()
			assigned += n
			mu.Unlock()
		}()
	}

	wg.Wait()
	return assigned
}

// processUser evaluates every candidate quiz for one user. The user's
// completion history is fetched once and reused for every reference-date
// resolution.
func (s *SweepService) processUser(
	ctx context.Context,
	user *entities.User,
	quizzes []*entities.QuizDefinition,
	now time.Time,
) int {
	completed, err := s.ledger.ListCompleted(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load completion history",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return 0
	}

	assigned := 0
	for _, quiz := range quizzes {
		created, err := s.evaluatePair(ctx, user, quiz, completed, now)
		if err != nil {
			// Best-effort batch: log and move on, the next sweep retries.
			s.logger.Error("failed to evaluate pair",
				zap.String("user_id", user.ID.String()),
				zap.String("quiz_id", quiz.ID.String()),
				zap.Error(err))
			continue
		}
		if created {
			assigned++
		}
	}

	return assigned
}

// evaluatePair decides whether one (user, quiz) pair becomes a pending entry at
// the given instant.
func (s *SweepService) evaluatePair(
	ctx context.Context,
	user *entities.User,
	quiz *entities.QuizDefinition,
	completed []entities.CompletedQuiz,
	now time.Time,
) (bool, error) {
	outcome, err := s.ledger.HasOutcome(ctx, user.ID, quiz.ID)
	if err != nil {
		return false, fmt.Errorf("check quiz outcome: %w", err)
	}
	if outcome {
		return false, nil
	}

	reference := entities.ResolveReferenceDate(user.RegisteredAt, completed, quiz.StartFrom)

	trigger, err := quiz.TriggerAt(reference)
	if err != nil {
		// Invalid configs degrade to a zero delay; keep processing with the
		// fallback value so one broken quiz does not block the sweep.
		s.logger.Warn("invalid trigger configuration",
			zap.String("quiz_id", quiz.ID.String()),
			zap.Error(err))
	}

	if now.Before(trigger) {
		return false, nil
	}

	if !quiz.AllowsNow(user.ActiveWindow.IsWithinWindow) {
		return false, nil
	}

	pending := entities.NewPendingQuiz(user.ID, quiz.ID, entities.AssignmentSystemAuto, now)

	created, err := s.ledger.AddPendingIfAbsent(ctx, pending, false)
	if err != nil {
		return false, fmt.Errorf("add pending quiz: %w", err)
	}
	if created {
		s.logger.Info("quiz auto-assigned",
			zap.String("user_id", user.ID.String()),
			zap.String("quiz_id", quiz.ID.String()),
			zap.Time("trigger_at", trigger),
		)
	}

	return created, nil
}
