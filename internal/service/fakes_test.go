package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fitpulsehq/fitpulse-backend/internal/domain/entities"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres/repository"
)

type fakeCatalog struct {
	quizzes map[uuid.UUID]*entities.QuizDefinition
}

func newFakeCatalog(quizzes ...*entities.QuizDefinition) *fakeCatalog {
	f := &fakeCatalog{quizzes: make(map[uuid.UUID]*entities.QuizDefinition)}
	for _, q := range quizzes {
		f.quizzes[q.ID] = q
	}
	return f
}

func (f *fakeCatalog) GetByID(_ context.Context, quizID uuid.UUID) (*entities.QuizDefinition, error) {
	quiz, ok := f.quizzes[quizID]
	if !ok {
		return nil, repository.ErrQuizNotFound
	}
	return quiz, nil
}

func (f *fakeCatalog) ListActiveIntervalQuizzes(_ context.Context) ([]*entities.QuizDefinition, error) {
	var out []*entities.QuizDefinition
	for _, q := range f.quizzes {
		if q.IsActive && q.TriggerType == entities.TriggerTimeInterval {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type fakeDirectory struct {
	users map[uuid.UUID]*entities.User
}

func newFakeDirectory(users ...*entities.User) *fakeDirectory {
	f := &fakeDirectory{users: make(map[uuid.UUID]*entities.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeDirectory) GetByID(_ context.Context, userID uuid.UUID, _ time.Time) (*entities.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeDirectory) ListActiveBatch(_ context.Context, _ time.Time, limit, offset int) ([]*entities.User, error) {
	var all []*entities.User
	for _, u := range f.users {
		if u.IsActive {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type pairKey struct {
	userID uuid.UUID
	quizID uuid.UUID
}

// fakeLedger mirrors the postgres ledger's guard semantics in memory.
type fakeLedger struct {
	mu        sync.Mutex
	pending   map[pairKey]*entities.PendingQuiz
	completed map[pairKey]entities.CompletedQuiz
	skipped   map[pairKey]entities.SkippedQuiz
	answers   []entities.QuizAnswer
	orphans   []*entities.OrphanedPending

	listCompletedErr map[uuid.UUID]error // per-user injected failure
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		pending:          make(map[pairKey]*entities.PendingQuiz),
		completed:        make(map[pairKey]entities.CompletedQuiz),
		skipped:          make(map[pairKey]entities.SkippedQuiz),
		listCompletedErr: make(map[uuid.UUID]error),
	}
}

func (f *fakeLedger) HasOutcome(_ context.Context, userID, quizID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{userID, quizID}
	_, p := f.pending[k]
	_, c := f.completed[k]
	_, s := f.skipped[k]
	return p || c || s, nil
}

func (f *fakeLedger) HasCompleted(_ context.Context, userID, quizID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.completed[pairKey{userID, quizID}]
	return ok, nil
}

func (f *fakeLedger) AddPendingIfAbsent(_ context.Context, p *entities.PendingQuiz, overrideSkip bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{p.UserID, p.QuizID}
	if _, ok := f.completed[k]; ok {
		return false, nil
	}
	if _, ok := f.skipped[k]; ok && !overrideSkip {
		return false, nil
	}
	if _, ok := f.pending[k]; ok {
		return false, nil
	}
	f.pending[k] = p
	return true, nil
}

func (f *fakeLedger) GetPending(_ context.Context, userID, quizID uuid.UUID) (*entities.PendingQuiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pending[pairKey{userID, quizID}]
	if !ok {
		return nil, repository.ErrPendingNotFound
	}
	return p, nil
}

func (f *fakeLedger) ListPending(_ context.Context, userID uuid.UUID) ([]*entities.PendingQuiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.PendingQuiz
	for k, p := range f.pending {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (f *fakeLedger) ListCompleted(_ context.Context, userID uuid.UUID) ([]entities.CompletedQuiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listCompletedErr[userID]; err != nil {
		return nil, err
	}
	var out []entities.CompletedQuiz
	for k, c := range f.completed {
		if k.userID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkCompleted(_ context.Context, userID, quizID uuid.UUID, completedAt time.Time, answers []entities.QuizAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{userID, quizID}
	if _, ok := f.completed[k]; !ok {
		f.completed[k] = entities.CompletedQuiz{UserID: userID, QuizID: quizID, CompletedAt: completedAt}
		f.answers = append(f.answers, answers...)
	}
	delete(f.pending, k)
	return nil
}

func (f *fakeLedger) RemovePending(_ context.Context, userID, quizID uuid.UUID, recordSkip bool, skippedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{userID, quizID}
	if _, ok := f.pending[k]; !ok {
		return repository.ErrPendingNotFound
	}
	delete(f.pending, k)
	if recordSkip {
		if _, ok := f.skipped[k]; !ok {
			f.skipped[k] = entities.SkippedQuiz{UserID: userID, QuizID: quizID, SkippedAt: skippedAt}
		}
	}
	return nil
}

func (f *fakeLedger) ListOrphanedPending(_ context.Context) ([]*entities.OrphanedPending, error) {
	return f.orphans, nil
}

func (f *fakeLedger) PurgeMissingQuizPending(_ context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeLedger) pendingFor(userID, quizID uuid.UUID) *entities.PendingQuiz {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[pairKey{userID, quizID}]
}

func (f *fakeLedger) addCompleted(userID, quizID uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[pairKey{userID, quizID}] = entities.CompletedQuiz{UserID: userID, QuizID: quizID, CompletedAt: at}
}

func (f *fakeLedger) addSkipped(userID, quizID uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped[pairKey{userID, quizID}] = entities.SkippedQuiz{UserID: userID, QuizID: quizID, SkippedAt: at}
}

func (f *fakeLedger) addPending(p *entities.PendingQuiz) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[pairKey{p.UserID, p.QuizID}] = p
}

func intervalQuiz(title string) *entities.QuizDefinition {
	quiz := entities.NewQuizDefinition(title, entities.TriggerTimeInterval)
	quiz.DelayAmount = 0
	quiz.DelayUnit = entities.DelayUnitSeconds
	return quiz
}

func activeUser(registeredAt time.Time, withinWindow bool) *entities.User {
	return &entities.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		IsActive:     true,
		RegisteredAt: registeredAt,
		ActiveWindow: entities.ActiveWindow{IsWithinWindow: withinWindow},
	}
}
