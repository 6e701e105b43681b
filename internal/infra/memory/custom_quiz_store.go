package memory

import (
	"context"
	"sort"
	"sync"

	"mock-exam-service/internal/domain"
)

// CustomQuizStore is an in-memory app.CustomQuizStore.
type CustomQuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.CustomQuiz
}

func NewCustomQuizStore() *CustomQuizStore {
	return &CustomQuizStore{quizzes: make(map[string]domain.CustomQuiz)}
}

func (s *CustomQuizStore) Create(_ context.Context, quiz domain.CustomQuiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

// ListByUser returns the learner's quizzes, newest first.
func (s *CustomQuizStore) ListByUser(_ context.Context, userID string) ([]domain.CustomQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.CustomQuiz{}
	for _, q := range s.quizzes {
		if q.UserID == userID {
			out = append(out, cloneQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a quiz owned by userID. Quizzes of other learners look missing.
func (s *CustomQuizStore) Delete(_ context.Context, userID, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	if !ok || q.UserID != userID {
		return domain.ErrCustomQuizNotFound
	}
	delete(s.quizzes, quizID)
	return nil
}

func cloneQuiz(q domain.CustomQuiz) domain.CustomQuiz {
	q.SubjectIDs = append([]string(nil), q.SubjectIDs...)
	q.TopicIDs = append([]string{}, q.TopicIDs...)
	return q
}
