package app_test

import (
	"context"
	"testing"
	"time"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/infra/memory"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	service  *app.ExamService
	catalog  *memory.Catalog
	attempts *memory.AttemptStore
	now      time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// newFixture seeds one UPSC exam with a two-question paper worth 4 marks and enrolls
// alice and bob.
func newFixture(t *testing.T, opts ...app.ServiceOption) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil, opts...)
}

func newFixtureWithStore(t *testing.T, wrap func(app.AttemptStore) app.AttemptStore, opts ...app.ServiceOption) *fixture {
	t.Helper()
	return buildFixture(t, wrap, memory.NewBoardStore(), opts...)
}

func newFixtureWithBoards(t *testing.T, boards app.BoardRepository, opts ...app.ServiceOption) *fixture {
	t.Helper()
	return buildFixture(t, nil, boards, opts...)
}

func buildFixture(t *testing.T, wrap func(app.AttemptStore) app.AttemptStore, boards app.BoardRepository, opts ...app.ServiceOption) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{catalog: memory.NewCatalog(), attempts: memory.NewAttemptStore(), now: t0}

	must(t, f.catalog.PutExam(ctx, domain.Exam{ID: "upsc-cse", Name: "UPSC CSE", Category: "UPSC", IsActive: true}))
	must(t, f.catalog.PutPaper(ctx, samplePaper()))
	for _, user := range []string{"alice", "bob"} {
		must(t, f.catalog.PutEnrollment(ctx, domain.Enrollment{UserID: user, ExamID: "upsc-cse", Active: true}))
	}

	var store app.AttemptStore = f.attempts
	if wrap != nil {
		store = wrap(store)
	}
	opts = append([]app.ServiceOption{
		app.WithClock(f.clock),
		app.WithRetry(3, time.Millisecond),
		app.WithCustomQuizStore(memory.NewCustomQuizStore()),
	}, opts...)
	f.service = app.NewExamService(
		memory.NewPaperRepository(f.catalog, time.Minute),
		f.catalog,
		store,
		boards,
		opts...,
	)
	return f
}

func samplePaper() domain.TestPaper {
	return domain.TestPaper{
		ID:              "paper-1",
		ExamID:          "upsc-cse",
		Subject:         "General Studies",
		Title:           "Prelims Mock 1",
		DurationMinutes: 60,
		IsActive:        true,
		CreatedAt:       t0.Add(-24 * time.Hour),
		Sections: []domain.Section{{
			ID:   "s1",
			Name: "Polity",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "Which article abolishes untouchability?",
					Type:   domain.QuestionMCQ,
					Marks:  2,
					Options: []domain.Option{
						{ID: "a", Text: "Article 14"},
						{ID: "b", Text: "Article 17", Correct: true},
					},
				},
				{
					ID:     "q2",
					Prompt: "The Rajya Sabha can be dissolved.",
					Type:   domain.QuestionTrueFalse,
					Marks:  2,
					Options: []domain.Option{
						{ID: "t", Text: "True"},
						{ID: "f", Text: "False", Correct: true},
					},
				},
			},
		}},
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
