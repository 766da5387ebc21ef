package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTriggerConfig reports a quiz whose interval-trigger fields cannot be
// interpreted (negative delay amount or unrecognized delay unit). The quiz is
// still processed with a zero delay so one misconfigured quiz never blocks the rest.
var ErrInvalidTriggerConfig = errors.New("invalid trigger configuration")

// TriggerType defines how a quiz reaches a user's pending list.
type TriggerType string

const (
	// TriggerAdminAssignment quizzes are assigned only by explicit admin action.
	TriggerAdminAssignment TriggerType = "ADMIN_ASSIGNMENT"
	// TriggerTimeInterval quizzes are assigned automatically by the sweep once
	// a configured delay from a reference point has elapsed.
	TriggerTimeInterval TriggerType = "TIME_INTERVAL"
)

// StartFrom is the event a quiz's delay is measured from.
type StartFrom string

const (
	StartFromRegistration        StartFrom = "REGISTRATION"
	StartFromFirstQuizCompletion StartFrom = "FIRST_QUIZ_COMPLETION"
	StartFromLastQuizCompletion  StartFrom = "LAST_QUIZ_COMPLETION"
)

// TimeFrameHandling controls how a quiz interacts with the user's active window.
type TimeFrameHandling string

const (
	TimeFrameAllUsers    TimeFrameHandling = "ALL_USERS"
	TimeFrameRespect     TimeFrameHandling = "RESPECT_TIMEFRAME"
	TimeFrameOutsideOnly TimeFrameHandling = "OUTSIDE_TIMEFRAME_ONLY"
)

// DelayUnit is the unit of a quiz's configured trigger delay.
type DelayUnit string

const (
	DelayUnitSeconds DelayUnit = "seconds"
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
	DelayUnitWeeks   DelayUnit = "weeks"
)

// Duration returns the exact duration of a single unit. Factors are fixed
// (a day is 86400s, a week 604800s); no calendar arithmetic is involved.
func (u DelayUnit) Duration() (time.Duration, error) {
	switch u {
	case DelayUnitSeconds:
		return time.Second, nil
	case DelayUnitMinutes:
		return time.Minute, nil
	case DelayUnitHours:
		return time.Hour, nil
	case DelayUnitDays:
		return 24 * time.Hour, nil
	case DelayUnitWeeks:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown delay unit %q", ErrInvalidTriggerConfig, string(u))
	}
}

// QuizDefinition is a catalog entry describing a quiz and its assignment trigger.
// The interval-trigger fields (DelayAmount, DelayUnit, LegacyDelayDays, StartFrom,
// TimeFrameHandling) are only meaningful when TriggerType is TIME_INTERVAL.
type QuizDefinition struct {
	ID                uuid.UUID
	Title             string
	IsActive          bool
	TriggerType       TriggerType
	DelayAmount       int
	DelayUnit         DelayUnit // empty for quizzes that predate amount/unit configuration
	LegacyDelayDays   int       // whole-days fallback, read only when DelayUnit is empty
	StartFrom         StartFrom
	TimeFrameHandling TimeFrameHandling
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewQuizDefinition creates an active quiz definition with a fresh id.
func NewQuizDefinition(title string, triggerType TriggerType) *QuizDefinition {
	now := time.Now().UTC()
	return &QuizDefinition{
		ID:                uuid.New(),
		Title:             title,
		IsActive:          true,
		TriggerType:       triggerType,
		StartFrom:         StartFromRegistration,
		TimeFrameHandling: TimeFrameAllUsers,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Delay returns the configured trigger delay. Amount/unit always take precedence;
// the legacy whole-days field is read only when no unit is configured. On an
// invalid configuration the returned delay is zero together with
// ErrInvalidTriggerConfig, so callers can log and keep going.
func (q *QuizDefinition) Delay() (time.Duration, error) {
	if q.DelayUnit == "" {
		if q.LegacyDelayDays < 0 {
			return 0, fmt.Errorf("%w: negative legacy delay days %d", ErrInvalidTriggerConfig, q.LegacyDelayDays)
		}
		return time.Duration(q.LegacyDelayDays) * 24 * time.Hour, nil
	}

	if q.DelayAmount < 0 {
		return 0, fmt.Errorf("%w: negative delay amount %d", ErrInvalidTriggerConfig, q.DelayAmount)
	}

	unit, err := q.DelayUnit.Duration()
	if err != nil {
		return 0, err
	}

	return time.Duration(q.DelayAmount) * unit, nil
}

// TriggerAt returns the absolute instant the quiz becomes due, measured from the
// given reference date. A zero delay means the quiz is due from the reference
// moment onward and fires on the next sweep.
func (q *QuizDefinition) TriggerAt(reference time.Time) (time.Time, error) {
	delay, err := q.Delay()
	return reference.Add(delay), err
}

// AllowsNow evaluates the quiz's time-frame policy against the user's current
// window status. The evaluation is pure and must be re-run whenever the answer
// matters: the window status may differ between sweep time and selection time.
func (q *QuizDefinition) AllowsNow(isWithinWindow bool) bool {
	switch q.TimeFrameHandling {
	case TimeFrameAllUsers:
		return true
	case TimeFrameRespect:
		return isWithinWindow
	case TimeFrameOutsideOnly:
		return !isWithinWindow
	default:
		// Unknown policies deny rather than silently behave like ALL_USERS.
		return false
	}
}
