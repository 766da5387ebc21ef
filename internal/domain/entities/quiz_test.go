package entities

import (
	"errors"
	"testing"
	"time"
)

func TestResolveReferenceDate(t *testing.T) {
	registered := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// Stored out of completion order on purpose: ordering is recomputed on read.
	completed := []CompletedQuiz{
		{CompletedAt: last},
		{CompletedAt: first},
	}

	tests := []struct {
		name      string
		from      StartFrom
		completed []CompletedQuiz
		want      time.Time
	}{
		{"registration", StartFromRegistration, completed, registered},
		{"first completion", StartFromFirstQuizCompletion, completed, first},
		{"last completion", StartFromLastQuizCompletion, completed, last},
		{"first completion, empty history", StartFromFirstQuizCompletion, nil, registered},
		{"last completion, empty history", StartFromLastQuizCompletion, nil, registered},
		{"unknown reference point", StartFrom("SOMETHING_ELSE"), completed, registered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveReferenceDate(registered, tt.completed, tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("ResolveReferenceDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuizDelay(t *testing.T) {
	tests := []struct {
		name       string
		amount     int
		unit       DelayUnit
		legacyDays int
		want       time.Duration
		wantErr    bool
	}{
		{"seconds", 90, DelayUnitSeconds, 0, 90 * time.Second, false},
		{"minutes", 15, DelayUnitMinutes, 0, 15 * time.Minute, false},
		{"hours", 2, DelayUnitHours, 0, 2 * time.Hour, false},
		{"days", 3, DelayUnitDays, 0, 72 * time.Hour, false},
		{"weeks", 2, DelayUnitWeeks, 0, 336 * time.Hour, false},
		{"zero amount", 0, DelayUnitDays, 0, 0, false},
		{"legacy fallback", 0, "", 3, 72 * time.Hour, false},
		{"amount and unit beat legacy", 1, DelayUnitHours, 30, time.Hour, false},
		{"negative amount", -1, DelayUnitDays, 0, 0, true},
		{"negative legacy days", 0, "", -2, 0, true},
		{"unknown unit", 5, DelayUnit("fortnights"), 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := &QuizDefinition{
				DelayAmount:     tt.amount,
				DelayUnit:       tt.unit,
				LegacyDelayDays: tt.legacyDays,
			}

			got, err := quiz.Delay()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTriggerConfig) {
					t.Fatalf("err = %v, want ErrInvalidTriggerConfig", err)
				}
			} else if err != nil {
				t.Fatalf("Delay() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerAt(t *testing.T) {
	reference := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seconds := &QuizDefinition{DelayAmount: 90, DelayUnit: DelayUnitSeconds}
	got, err := seconds.TriggerAt(reference)
	if err != nil {
		t.Fatalf("TriggerAt: %v", err)
	}
	if want := time.Date(2024, 1, 1, 0, 1, 30, 0, time.UTC); !got.Equal(want) {
		t.Errorf("90 seconds: TriggerAt() = %v, want %v", got, want)
	}

	weeks := &QuizDefinition{DelayAmount: 2, DelayUnit: DelayUnitWeeks}
	got, err = weeks.TriggerAt(reference)
	if err != nil {
		t.Fatalf("TriggerAt: %v", err)
	}
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("2 weeks: TriggerAt() = %v, want %v", got, want)
	}

	// Invalid configs still return a usable (zero-delay) trigger.
	broken := &QuizDefinition{DelayAmount: -1, DelayUnit: DelayUnitDays}
	got, err = broken.TriggerAt(reference)
	if !errors.Is(err, ErrInvalidTriggerConfig) {
		t.Fatalf("err = %v, want ErrInvalidTriggerConfig", err)
	}
	if !got.Equal(reference) {
		t.Errorf("invalid config: TriggerAt() = %v, want reference %v", got, reference)
	}
}

func TestAllowsNow(t *testing.T) {
	tests := []struct {
		name         string
		handling     TimeFrameHandling
		withinWindow bool
		want         bool
	}{
		{"all users, within", TimeFrameAllUsers, true, true},
		{"all users, outside", TimeFrameAllUsers, false, true},
		{"respect, within", TimeFrameRespect, true, true},
		{"respect, outside", TimeFrameRespect, false, false},
		{"outside only, within", TimeFrameOutsideOnly, true, false},
		{"outside only, outside", TimeFrameOutsideOnly, false, true},
		{"unknown policy denies", TimeFrameHandling("WHENEVER"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := &QuizDefinition{TimeFrameHandling: tt.handling}
			if got := quiz.AllowsNow(tt.withinWindow); got != tt.want {
				t.Errorf("AllowsNow(%v) = %v, want %v", tt.withinWindow, got, tt.want)
			}
		})
	}
}
