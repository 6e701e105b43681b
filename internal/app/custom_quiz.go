package app

import (
	"context"
	"errors"
	"strings"

	"mock-exam-service/internal/domain"
)

// CustomQuizStore keeps custom quizzes. Delete must only remove a quiz owned by userID
// and report domain.ErrCustomQuizNotFound otherwise.
type CustomQuizStore interface {
	Create(ctx context.Context, quiz domain.CustomQuiz) error
	ListByUser(ctx context.Context, userID string) ([]domain.CustomQuiz, error)
	Delete(ctx context.Context, userID, quizID string) error
}

var errNoQuizStore = errors.New("custom quiz store not configured")

// CustomQuizInput is the learner payload for saving a custom quiz.
type CustomQuizInput struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=2000"`
	QuestionCount   int      `json:"questionCount" validate:"gte=1,lte=500"`
	DurationMinutes int      `json:"duration" validate:"gte=1,lte=600"`
	SubjectIDs      []string `json:"subjectIds" validate:"required,min=1,dive,required"`
	TopicIDs        []string `json:"topicIds" validate:"omitempty,dive,required"`
}

// ListSubjects returns the subjects of active exams with their topics.
func (s *ExamService) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	return s.catalog.ListSubjects(ctx)
}

// CreateCustomQuiz saves a quiz built from known subjects. Topics must belong to one of the
// chosen subjects.
func (s *ExamService) CreateCustomQuiz(ctx context.Context, userID string, in CustomQuizInput) (domain.CustomQuiz, error) {
	if s.quizzes == nil {
		return domain.CustomQuiz{}, errNoQuizStore
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return domain.CustomQuiz{}, domain.Malformed("%v", err)
	}

	subjects, err := s.catalog.ListSubjects(ctx)
	if err != nil {
		return domain.CustomQuiz{}, err
	}
	known := make(map[string]domain.Subject, len(subjects))
	for _, subj := range subjects {
		known[subj.ID] = subj
	}
	topics := make(map[string]bool)
	subjectIDs := dedupe(in.SubjectIDs)
	for _, id := range subjectIDs {
		subj, ok := known[id]
		if !ok {
			return domain.CustomQuiz{}, domain.Malformed("unknown subject %q", id)
		}
		for _, t := range subj.Topics {
			topics[t.ID] = true
		}
	}
	topicIDs := dedupe(in.TopicIDs)
	for _, id := range topicIDs {
		if !topics[id] {
			return domain.CustomQuiz{}, domain.Malformed("topic %q is not part of the chosen subjects", id)
		}
	}

	quiz := domain.CustomQuiz{
		ID:              s.newID(),
		UserID:          userID,
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		QuestionCount:   in.QuestionCount,
		DurationMinutes: in.DurationMinutes,
		SubjectIDs:      subjectIDs,
		TopicIDs:        topicIDs,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return domain.CustomQuiz{}, err
	}
	return quiz, nil
}

// ListCustomQuizzes returns the learner's own quizzes, newest first.
func (s *ExamService) ListCustomQuizzes(ctx context.Context, userID string) ([]domain.CustomQuiz, error) {
	if s.quizzes == nil {
		return nil, errNoQuizStore
	}
	return s.quizzes.ListByUser(ctx, userID)
}

// DeleteCustomQuiz removes one of the learner's quizzes.
func (s *ExamService) DeleteCustomQuiz(ctx context.Context, userID, quizID string) error {
	if s.quizzes == nil {
		return errNoQuizStore
	}
	if strings.TrimSpace(quizID) == "" {
		return domain.Malformed("quiz id is required")
	}
	return s.quizzes.Delete(ctx, userID, quizID)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
