package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"mock-exam-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// AttemptStore implements app.AttemptStore on bun.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Create inserts an in-progress attempt. The (user_id, test_paper_id) unique key turns a
// concurrent second start into domain.ErrAttemptExists.
func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	row := attemptToRow(attempt)
	res, err := s.db.NewInsert().Model(&row).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAttemptExists
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.getWith(ctx, s.db, attemptID, false)
}

func (s *AttemptStore) getWith(ctx context.Context, db bun.IDB, attemptID string, forUpdate bool) (domain.Attempt, error) {
	var row AttemptRow
	q := db.NewSelect().Model(&row).Where("a.id = ?", attemptID)
	if forUpdate && s.db.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return attemptFromRow(row), nil
}

func (s *AttemptStore) FindByLearner(ctx context.Context, userID, paperID string) (domain.Attempt, error) {
	var row AttemptRow
	err := s.db.NewSelect().Model(&row).
		Where("a.user_id = ?", userID).
		Where("a.test_paper_id = ?", paperID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return attemptFromRow(row), nil
}

func (s *AttemptStore) SaveDraft(ctx context.Context, attemptID string, sheet domain.AnswerSheet) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attempt, err := s.getWith(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		if attempt.Completed {
			return domain.ErrAttemptCompleted
		}
		draft := make(map[string]string, len(attempt.Draft)+len(sheet))
		for q, o := range attempt.Draft {
			draft[q] = o
		}
		for q, o := range sheet {
			draft[q] = o
		}
		res, err := tx.NewUpdate().Model((*AttemptRow)(nil)).
			Set("draft = ?", draftValue(draft)).
			Where("id = ?", attemptID).
			Where("is_completed = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		return requireRow(res, domain.ErrAttemptCompleted)
	})
}

// Complete writes the graded attempt and its answers in one transaction. The update only
// matches an in-progress row, so a second completion affects nothing and rolls back.
func (s *AttemptStore) Complete(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) error {
	row := attemptToRow(attempt)
	row.IsCompleted = true

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(&row).
			Column("submitted_at", "time_spent", "is_completed", "total_marks", "obtained_marks", "percentage", "rank", "draft").
			WherePK().
			Where("is_completed = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			if _, getErr := s.getWith(ctx, tx, attempt.ID, false); getErr != nil {
				return getErr
			}
			return domain.ErrAttemptCompleted
		}

		if len(answers) == 0 {
			return nil
		}
		rows := make([]AnswerRow, 0, len(answers))
		for _, a := range answers {
			rows = append(rows, AnswerRow{
				ID:               a.ID,
				AttemptID:        attempt.ID,
				QuestionID:       a.QuestionID,
				SelectedOptionID: a.SelectedOptionID,
				IsCorrect:        a.Correct,
				MarksObtained:    a.MarksObtained,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		return nil
	})
}

func (s *AttemptStore) Answers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	var rows []AnswerRow
	err := s.db.NewSelect().Model(&rows).
		Where("ans.attempt_id = ?", attemptID).
		Order("ans.question_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	return answersFromRows(rows), nil
}

func (s *AttemptStore) AnswersByLearner(ctx context.Context, userID string) ([]domain.Answer, error) {
	return s.completedAnswers(ctx, "a.user_id = ?", userID)
}

func (s *AttemptStore) AnswersByPaper(ctx context.Context, paperID string) ([]domain.Answer, error) {
	return s.completedAnswers(ctx, "a.test_paper_id = ?", paperID)
}

func (s *AttemptStore) completedAnswers(ctx context.Context, where string, arg any) ([]domain.Answer, error) {
	var rows []AnswerRow
	err := s.db.NewSelect().Model(&rows).
		Join("JOIN attempts AS a ON a.id = ans.attempt_id").
		Where(where, arg).
		Where("a.is_completed = ?", true).
		Order("ans.attempt_id", "ans.question_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	return answersFromRows(rows), nil
}

func (s *AttemptStore) CompletedByPaper(ctx context.Context, paperID string) ([]domain.Attempt, error) {
	return s.attemptsWhere(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.test_paper_id = ?", paperID).Where("a.is_completed = ?", true)
	})
}

func (s *AttemptStore) CompletedByLearner(ctx context.Context, userID string) ([]domain.Attempt, error) {
	return s.attemptsWhere(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.user_id = ?", userID).Where("a.is_completed = ?", true)
	})
}

func (s *AttemptStore) InProgressBefore(ctx context.Context, cutoff time.Time) ([]domain.Attempt, error) {
	return s.attemptsWhere(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("a.is_completed = ?", false).Where("a.started_at < ?", cutoff.UTC())
	})
}

func (s *AttemptStore) attemptsWhere(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.Attempt, error) {
	var rows []AttemptRow
	q := filter(s.db.NewSelect().Model(&rows)).Order("a.started_at", "a.id")
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, attemptFromRow(r))
	}
	return out, nil
}

func (s *AttemptStore) PapersWithCompleted(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*AttemptRow)(nil)).
		ColumnExpr("DISTINCT a.test_paper_id").
		Where("a.is_completed = ?", true).
		OrderExpr("a.test_paper_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select papers: %w", err)
	}
	return ids, nil
}

func (s *AttemptStore) UpdateRanks(ctx context.Context, ranks map[string]int) error {
	ids := make([]string, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	// fixed order keeps concurrent rerank transactions from deadlocking
	sort.Strings(ids)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, id := range ids {
			_, err := tx.NewUpdate().Model((*AttemptRow)(nil)).
				Set("rank = ?", ranks[id]).
				Where("id = ?", id).
				Where("is_completed = ?", true).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update rank: %w", err)
			}
		}
		return nil
	})
}

func (s *AttemptStore) CountAttempts(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*AttemptRow)(nil)).Count(ctx)
}

func answersFromRows(rows []AnswerRow) []domain.Answer {
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, answerFromRow(r))
	}
	return out
}

func requireRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return otherwise
	}
	return nil
}
