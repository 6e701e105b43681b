package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"
)

func TestListSubjectsFromCatalog(t *testing.T) {
	f := newFixture(t)

	subjects, err := f.service.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("list subjects: %v", err)
	}
	if len(subjects) != 1 {
		t.Fatalf("expected one subject, got %+v", subjects)
	}
	gs := subjects[0]
	if gs.ID != "upsc-cse:general-studies" || gs.ExamName != "UPSC CSE" || gs.Category != "UPSC" {
		t.Fatalf("unexpected subject: %+v", gs)
	}
	if len(gs.Topics) != 1 || gs.Topics[0].ID != "upsc-cse:general-studies/polity" {
		t.Fatalf("unexpected topics: %+v", gs.Topics)
	}
}

func TestCreateCustomQuizValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := app.CustomQuizInput{
		Title:           "Polity drill",
		QuestionCount:   10,
		DurationMinutes: 15,
		SubjectIDs:      []string{"upsc-cse:general-studies"},
		TopicIDs:        []string{"upsc-cse:general-studies/polity"},
	}

	cases := map[string]func(in *app.CustomQuizInput){
		"missing title":     func(in *app.CustomQuizInput) { in.Title = "   " },
		"no subjects":       func(in *app.CustomQuizInput) { in.SubjectIDs = nil },
		"empty subject id":  func(in *app.CustomQuizInput) { in.SubjectIDs = []string{""} },
		"unknown subject":   func(in *app.CustomQuizInput) { in.SubjectIDs = []string{"upsc-cse:csat"} },
		"foreign topic":     func(in *app.CustomQuizInput) { in.TopicIDs = []string{"upsc-cse:csat/maths"} },
		"zero questions":    func(in *app.CustomQuizInput) { in.QuestionCount = 0 },
		"negative duration": func(in *app.CustomQuizInput) { in.DurationMinutes = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			if _, err := f.service.CreateCustomQuiz(ctx, "alice", in); !errors.Is(err, domain.ErrMalformedInput) {
				t.Fatalf("expected malformed input, got %v", err)
			}
		})
	}

	quizzes, err := f.service.ListCustomQuizzes(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 0 {
		t.Fatalf("rejected input must not be stored: %+v", quizzes)
	}
}

func TestCustomQuizLifecycle(t *testing.T) {
	n := 0
	f := newFixture(t, app.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("quiz-%d", n)
	}))
	ctx := context.Background()
	in := app.CustomQuizInput{
		Title:           "  Polity drill ",
		QuestionCount:   10,
		DurationMinutes: 15,
		SubjectIDs:      []string{"upsc-cse:general-studies", "upsc-cse:general-studies"},
	}

	first, err := f.service.CreateCustomQuiz(ctx, "alice", in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Title != "Polity drill" || len(first.SubjectIDs) != 1 || first.TopicIDs == nil || !first.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected quiz: %+v", first)
	}
	f.advance(time.Minute)
	second, err := f.service.CreateCustomQuiz(ctx, "alice", in)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	quizzes, err := f.service.ListCustomQuizzes(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 2 || quizzes[0].ID != second.ID || quizzes[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", quizzes)
	}
	if theirs, _ := f.service.ListCustomQuizzes(ctx, "bob"); len(theirs) != 0 {
		t.Fatalf("bob should not see alice's quizzes: %+v", theirs)
	}

	if err := f.service.DeleteCustomQuiz(ctx, "bob", first.ID); !errors.Is(err, domain.ErrCustomQuizNotFound) {
		t.Fatalf("expected bob's delete to miss, got %v", err)
	}
	if err := f.service.DeleteCustomQuiz(ctx, "alice", first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	quizzes, _ = f.service.ListCustomQuizzes(ctx, "alice")
	if len(quizzes) != 1 || quizzes[0].ID != second.ID {
		t.Fatalf("unexpected quizzes after delete: %+v", quizzes)
	}
}
