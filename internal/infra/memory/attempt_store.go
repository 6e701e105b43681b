package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mock-exam-service/internal/domain"
)

// AttemptStore is an in-memory app.AttemptStore. Complete holds the write lock for the
// whole update, which gives the same all-or-nothing behaviour as a database transaction.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	byOwner  map[string]string
	answers  map[string][]domain.Answer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		byOwner:  make(map[string]string),
		answers:  make(map[string][]domain.Answer),
	}
}

func ownerKey(userID, paperID string) string {
	return userID + "\x00" + paperID
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(attempt.UserID, attempt.TestPaperID)
	if _, ok := s.byOwner[key]; ok {
		return domain.ErrAttemptExists
	}
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	s.byOwner[key] = attempt.ID
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (s *AttemptStore) FindByLearner(_ context.Context, userID, paperID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerKey(userID, paperID)]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(s.attempts[id]), nil
}

func (s *AttemptStore) SaveDraft(_ context.Context, attemptID string, sheet domain.AnswerSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if a.Completed {
		return domain.ErrAttemptCompleted
	}
	if a.Draft == nil {
		a.Draft = make(domain.AnswerSheet, len(sheet))
	}
	for q, o := range sheet {
		a.Draft[q] = o
	}
	s.attempts[attemptID] = a
	return nil
}

func (s *AttemptStore) Complete(_ context.Context, attempt domain.Attempt, answers []domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Completed {
		return domain.ErrAttemptCompleted
	}
	attempt.Completed = true
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	s.answers[attempt.ID] = append([]domain.Answer(nil), answers...)
	return nil
}

func (s *AttemptStore) Answers(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Answer{}, s.answers[attemptID]...), nil
}

func (s *AttemptStore) AnswersByLearner(_ context.Context, userID string) ([]domain.Answer, error) {
	return s.answersWhere(func(a domain.Attempt) bool { return a.UserID == userID }), nil
}

func (s *AttemptStore) AnswersByPaper(_ context.Context, paperID string) ([]domain.Answer, error) {
	return s.answersWhere(func(a domain.Attempt) bool { return a.TestPaperID == paperID }), nil
}

func (s *AttemptStore) answersWhere(match func(domain.Attempt) bool) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Answer{}
	for id, a := range s.attempts {
		if a.Completed && match(a) {
			out = append(out, s.answers[id]...)
		}
	}
	return out
}

func (s *AttemptStore) CompletedByPaper(_ context.Context, paperID string) ([]domain.Attempt, error) {
	return s.where(func(a domain.Attempt) bool { return a.Completed && a.TestPaperID == paperID }), nil
}

func (s *AttemptStore) CompletedByLearner(_ context.Context, userID string) ([]domain.Attempt, error) {
	return s.where(func(a domain.Attempt) bool { return a.Completed && a.UserID == userID }), nil
}

func (s *AttemptStore) InProgressBefore(_ context.Context, cutoff time.Time) ([]domain.Attempt, error) {
	return s.where(func(a domain.Attempt) bool { return !a.Completed && a.StartedAt.Before(cutoff) }), nil
}

func (s *AttemptStore) PapersWithCompleted(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, a := range s.attempts {
		if a.Completed {
			seen[a.TestPaperID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *AttemptStore) UpdateRanks(_ context.Context, ranks map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rank := range ranks {
		a, ok := s.attempts[id]
		if !ok || !a.Completed {
			continue
		}
		r := rank
		a.Rank = &r
		s.attempts[id] = a
	}
	return nil
}

func (s *AttemptStore) CountAttempts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts), nil
}

// where returns matching attempts ordered by start time.
func (s *AttemptStore) where(match func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Attempt{}
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	if a.Draft != nil {
		draft := make(domain.AnswerSheet, len(a.Draft))
		for q, o := range a.Draft {
			draft[q] = o
		}
		a.Draft = draft
	}
	return a
}
