package entities

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentType records which path created a pending entry.
type AssignmentType string

const (
	AssignmentAdminManual AssignmentType = "ADMIN_MANUAL"
	AssignmentSystemAuto  AssignmentType = "SYSTEM_AUTO"
)

// PendingQuiz is a quiz assigned to a user but not yet completed. The ledger
// keys pending entries on (user, quiz), so a quiz appears at most once per user.
type PendingQuiz struct {
	UserID         uuid.UUID
	QuizID         uuid.UUID
	AssignedAt     time.Time
	AssignedBy     *uuid.UUID // admin who assigned, nil for SYSTEM_AUTO entries
	AssignmentType AssignmentType
	IsAvailable    bool
}

// NewPendingQuiz creates a pending entry assigned at the given instant.
func NewPendingQuiz(userID, quizID uuid.UUID, assignmentType AssignmentType, assignedAt time.Time) *PendingQuiz {
	return &PendingQuiz{
		UserID:         userID,
		QuizID:         quizID,
		AssignedAt:     assignedAt,
		AssignmentType: assignmentType,
		IsAvailable:    true,
	}
}

// CompletedQuiz records that a user finished a quiz.
type CompletedQuiz struct {
	UserID      uuid.UUID
	QuizID      uuid.UUID
	CompletedAt time.Time
}

// SkippedQuiz records a quiz an admin removed from a user's pending list with
// the skip flag set. A skipped quiz is never re-assigned by the sweep; only a
// manual admin assignment can bring it back.
type SkippedQuiz struct {
	UserID    uuid.UUID
	QuizID    uuid.UUID
	SkippedAt time.Time
}

// QuizAnswer is a single answer a user submitted when completing a quiz.
type QuizAnswer struct {
	ID         int64
	UserID     uuid.UUID
	QuizID     uuid.UUID
	Question   string
	Response   string
	AnsweredAt time.Time
}

// OrphanReason classifies why a pending entry no longer resolves to an
// assignable quiz definition.
type OrphanReason string

const (
	OrphanQuizMissing  OrphanReason = "quiz_missing"
	OrphanQuizInactive OrphanReason = "quiz_inactive"
)

// OrphanedPending is a pending entry whose quiz definition was deleted or
// deactivated. Such entries are inert: the selector never returns them and the
// sweep never touches them; they surface only through admin diagnostics.
type OrphanedPending struct {
	UserID     uuid.UUID
	QuizID     uuid.UUID
	AssignedAt time.Time
	Reason     OrphanReason
}
