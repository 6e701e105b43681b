package sqldb

import (
	"context"
	"fmt"

	"mock-exam-service/internal/domain"

	"github.com/uptrace/bun"
)

// CustomQuizStore implements app.CustomQuizStore on bun.
type CustomQuizStore struct {
	db *bun.DB
}

func NewCustomQuizStore(db *bun.DB) *CustomQuizStore {
	return &CustomQuizStore{db: db}
}

func (s *CustomQuizStore) Create(ctx context.Context, quiz domain.CustomQuiz) error {
	row := CustomQuizRow{
		ID:              quiz.ID,
		UserID:          quiz.UserID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		QuestionCount:   quiz.QuestionCount,
		DurationMinutes: quiz.DurationMinutes,
		SubjectIDs:      quiz.SubjectIDs,
		TopicIDs:        quiz.TopicIDs,
		CreatedAt:       quiz.CreatedAt,
	}
	if row.TopicIDs == nil {
		row.TopicIDs = []string{}
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert custom quiz: %w", err)
	}
	return nil
}

func (s *CustomQuizStore) ListByUser(ctx context.Context, userID string) ([]domain.CustomQuiz, error) {
	var rows []CustomQuizRow
	err := s.db.NewSelect().Model(&rows).
		Where("cq.user_id = ?", userID).
		OrderExpr("cq.created_at DESC, cq.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select custom quizzes: %w", err)
	}
	out := make([]domain.CustomQuiz, 0, len(rows))
	for _, r := range rows {
		out = append(out, customQuizFromRow(r))
	}
	return out, nil
}

// Delete is scoped by owner in the WHERE clause, so another learner's quiz is not found.
func (s *CustomQuizStore) Delete(ctx context.Context, userID, quizID string) error {
	res, err := s.db.NewDelete().Model((*CustomQuizRow)(nil)).
		Where("id = ?", quizID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete custom quiz: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCustomQuizNotFound
	}
	return nil
}
