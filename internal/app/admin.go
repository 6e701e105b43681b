package app

import (
	"context"
	"strings"

	"mock-exam-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ExamInput is the admin payload for creating or replacing an exam.
type ExamInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,max=64"`
	IsActive    bool   `json:"isActive"`
}

// PutExam creates or replaces an exam. Categories are stored upper-case.
func (s *ExamService) PutExam(ctx context.Context, examID string, in ExamInput) (domain.Exam, error) {
	if strings.TrimSpace(examID) == "" {
		return domain.Exam{}, domain.Malformed("exam id is required")
	}
	if err := validate.Struct(in); err != nil {
		return domain.Exam{}, domain.Malformed("%v", err)
	}
	exam := domain.Exam{
		ID:          examID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.ToUpper(strings.TrimSpace(in.Category)),
		IsActive:    in.IsActive,
	}
	if err := s.catalog.PutExam(ctx, exam); err != nil {
		return domain.Exam{}, err
	}
	return exam, nil
}

// PutPaper validates and stores a full test paper, then drops it from the paper cache.
func (s *ExamService) PutPaper(ctx context.Context, paper domain.TestPaper) (domain.TestPaper, error) {
	if err := ValidatePaper(paper); err != nil {
		return domain.TestPaper{}, err
	}
	if _, err := s.catalog.GetExam(ctx, paper.ExamID); err != nil {
		return domain.TestPaper{}, err
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = s.now().UTC()
	}
	if err := s.catalog.PutPaper(ctx, paper); err != nil {
		return domain.TestPaper{}, err
	}
	if err := s.papers.Invalidate(ctx, paper.ID); err != nil {
		return domain.TestPaper{}, err
	}
	return paper, nil
}

// ValidatePaper checks the structural rules a gradable paper must satisfy.
func ValidatePaper(paper domain.TestPaper) error {
	switch {
	case strings.TrimSpace(paper.ID) == "":
		return domain.Malformed("test paper id is required")
	case strings.TrimSpace(paper.ExamID) == "":
		return domain.Malformed("exam id is required")
	case strings.TrimSpace(paper.Title) == "":
		return domain.Malformed("title is required")
	case paper.DurationMinutes < 0:
		return domain.Malformed("duration must not be negative")
	case len(paper.Sections) == 0:
		return domain.Malformed("a test paper needs at least one section")
	}

	seen := make(map[string]bool)
	for _, sec := range paper.Sections {
		for _, q := range sec.Questions {
			if q.ID == "" {
				return domain.Malformed("section %q: question id is required", sec.Name)
			}
			if seen[q.ID] {
				return domain.Malformed("duplicate question id %q", q.ID)
			}
			seen[q.ID] = true
			if q.Marks <= 0 {
				return domain.Malformed("question %q: marks must be positive", q.ID)
			}
			switch q.Type {
			case domain.QuestionMCQ, domain.QuestionTrueFalse:
				if err := validateOptions(q); err != nil {
					return err
				}
			case domain.QuestionShortAnswer, domain.QuestionEssay:
			default:
				return domain.Malformed("question %q: unknown type %q", q.ID, q.Type)
			}
		}
	}
	if len(seen) == 0 {
		return domain.Malformed("a test paper needs at least one question")
	}
	return nil
}

func validateOptions(q domain.Question) error {
	if len(q.Options) < 2 {
		return domain.Malformed("question %q: needs at least two options", q.ID)
	}
	ids := make(map[string]bool, len(q.Options))
	correct := 0
	for _, o := range q.Options {
		if o.ID == "" || ids[o.ID] {
			return domain.Malformed("question %q: option ids must be unique and non-empty", q.ID)
		}
		ids[o.ID] = true
		if o.Correct {
			correct++
		}
	}
	if correct != 1 {
		return domain.Malformed("question %q: exactly one option must be correct", q.ID)
	}
	return nil
}

// SetPaperActive opens or closes a paper for attempts.
func (s *ExamService) SetPaperActive(ctx context.Context, paperID string, active bool) error {
	if err := s.catalog.SetPaperActive(ctx, paperID, active); err != nil {
		return err
	}
	return s.papers.Invalidate(ctx, paperID)
}

// Enroll grants a learner access to an exam.
func (s *ExamService) Enroll(ctx context.Context, userID, examID string) error {
	return s.setEnrollment(ctx, userID, examID, true)
}

// Unenroll revokes access. Existing attempts are kept but can no longer be submitted.
func (s *ExamService) Unenroll(ctx context.Context, userID, examID string) error {
	return s.setEnrollment(ctx, userID, examID, false)
}

func (s *ExamService) setEnrollment(ctx context.Context, userID, examID string, active bool) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Malformed("user id is required")
	}
	if _, err := s.catalog.GetExam(ctx, examID); err != nil {
		return err
	}
	return s.catalog.PutEnrollment(ctx, domain.Enrollment{
		UserID:    userID,
		ExamID:    examID,
		Active:    active,
		CreatedAt: s.now().UTC(),
	})
}

// Overview is the admin dashboard.
type Overview struct {
	domain.CatalogCounts
	TotalAttempts int `json:"totalAttempts"`
}

func (s *ExamService) Overview(ctx context.Context) (Overview, error) {
	counts, err := s.catalog.Counts(ctx)
	if err != nil {
		return Overview{}, err
	}
	attempts, err := s.attempts.CountAttempts(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{CatalogCounts: counts, TotalAttempts: attempts}, nil
}

// QuestionStat is the per-question accuracy of a paper.
type QuestionStat struct {
	QuestionID string  `json:"questionId"`
	Attempts   int     `json:"attempts"`
	Correct    int     `json:"correct"`
	Accuracy   float64 `json:"accuracy"`
}

// PaperAnalytics summarises completed attempts of one paper.
type PaperAnalytics struct {
	TestPaperID       string         `json:"testPaperId"`
	Attempts          int            `json:"attempts"`
	AveragePercentage float64        `json:"averagePercentage"`
	HighestPercentage float64        `json:"highestPercentage"`
	LowestPercentage  float64        `json:"lowestPercentage"`
	Questions         []QuestionStat `json:"questions"`
}

func (s *ExamService) PaperAnalytics(ctx context.Context, paperID string) (PaperAnalytics, error) {
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return PaperAnalytics{}, err
	}
	completed, err := s.attempts.CompletedByPaper(ctx, paperID)
	if err != nil {
		return PaperAnalytics{}, err
	}
	answers, err := s.attempts.AnswersByPaper(ctx, paperID)
	if err != nil {
		return PaperAnalytics{}, err
	}

	out := PaperAnalytics{TestPaperID: paperID, Attempts: len(completed)}
	percentages := make([]float64, 0, len(completed))
	for i, a := range completed {
		p := deref(a.Percentage)
		percentages = append(percentages, p)
		if i == 0 || p > out.HighestPercentage {
			out.HighestPercentage = p
		}
		if i == 0 || p < out.LowestPercentage {
			out.LowestPercentage = p
		}
	}
	out.AveragePercentage = average(percentages)

	type tally struct{ attempts, correct int }
	tallies := make(map[string]*tally)
	for _, a := range answers {
		t, ok := tallies[a.QuestionID]
		if !ok {
			t = &tally{}
			tallies[a.QuestionID] = t
		}
		t.attempts++
		if a.Correct {
			t.correct++
		}
	}
	for _, q := range paper.Questions() {
		stat := QuestionStat{QuestionID: q.ID}
		if t, ok := tallies[q.ID]; ok {
			stat.Attempts = t.attempts
			stat.Correct = t.correct
			stat.Accuracy = round2(decimal.NewFromInt(int64(t.correct)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(t.attempts))))
		}
		out.Questions = append(out.Questions, stat)
	}
	return out, nil
}
