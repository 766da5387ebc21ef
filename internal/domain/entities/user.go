package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActiveWindow is the admin-configured period during which a user counts as
// "active". IsWithinWindow is recomputed against the current time whenever the
// user is read; the engine only ever consumes the boolean.
type ActiveWindow struct {
	StartsAt       *time.Time
	EndsAt         *time.Time
	IsWithinWindow bool
}

// User is the subset of the account record the assignment engine needs.
type User struct {
	ID           uuid.UUID
	Email        string
	IsActive     bool
	RegisteredAt time.Time
	ActiveWindow ActiveWindow
}

// ResolveReferenceDate returns the instant a quiz's delay is measured from.
// Completion ordering is recomputed here on every call; the stored list carries
// no ordering guarantee. The function is total: an empty completion list falls
// back to the registration date for both completion-based reference points.
func ResolveReferenceDate(registeredAt time.Time, completed []CompletedQuiz, from StartFrom) time.Time {
	switch from {
	case StartFromFirstQuizCompletion:
		if t, ok := earliestCompletion(completed); ok {
			return t
		}
	case StartFromLastQuizCompletion:
		if t, ok := latestCompletion(completed); ok {
			return t
		}
	}
	return registeredAt
}

func earliestCompletion(completed []CompletedQuiz) (time.Time, bool) {
	if len(completed) == 0 {
		return time.Time{}, false
	}
	min := completed[0].CompletedAt
	for _, c := range completed[1:] {
		if c.CompletedAt.Before(min) {
			min = c.CompletedAt
		}
	}
	return min, true
}

func latestCompletion(completed []CompletedQuiz) (time.Time, bool) {
	if len(completed) == 0 {
		return time.Time{}, false
	}
	max := completed[0].CompletedAt
	for _, c := range completed[1:] {
		if c.CompletedAt.After(max) {
			max = c.CompletedAt
		}
	}
	return max, true
}
