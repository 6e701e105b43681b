package sqldb_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/infra/sqldb"
	"mock-exam-service/internal/infra/sqldb/migrations"

	"github.com/uptrace/bun"
)

func newStore(t *testing.T) *sqldb.AttemptStore {
	t.Helper()
	return sqldb.NewAttemptStore(newDB(t))
}

func newDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqldb.Open(ctx, sqldb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var started = time.Date(2024, 3, 1, 9, 0, 0, 123456000, time.UTC)

func TestAttemptStoreCreateIsUniquePerLearnerAndPaper(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := domain.Attempt{ID: "a1", UserID: "alice", TestPaperID: "paper-1", StartedAt: started}
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	a.ID = "a2"
	if err := s.Create(ctx, a); !errors.Is(err, domain.ErrAttemptExists) {
		t.Fatalf("expected ErrAttemptExists, got %v", err)
	}

	got, err := s.FindByLearner(ctx, "alice", "paper-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "a1" || !got.StartedAt.Equal(started) || got.Completed {
		t.Fatalf("unexpected attempt: %+v", got)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreDraftMerges(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Create(ctx, domain.Attempt{ID: "a1", UserID: "alice", TestPaperID: "paper-1", StartedAt: started})

	if err := s.SaveDraft(ctx, "a1", domain.AnswerSheet{"q1": "a"}); err != nil {
		t.Fatalf("draft 1: %v", err)
	}
	if err := s.SaveDraft(ctx, "a1", domain.AnswerSheet{"q2": "f", "q1": "b"}); err != nil {
		t.Fatalf("draft 2: %v", err)
	}
	got, _ := s.Get(ctx, "a1")
	if got.Draft["q1"] != "b" || got.Draft["q2"] != "f" {
		t.Fatalf("unexpected draft: %v", got.Draft)
	}
}

func TestAttemptStoreCompleteIsAtomicAndOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Create(ctx, domain.Attempt{ID: "a1", UserID: "alice", TestPaperID: "paper-1", StartedAt: started})

	submitted := started.Add(10 * time.Minute)
	total, obtained, pct, rank, spent := 4.0, 2.0, 50.0, 1, 600
	done := domain.Attempt{
		ID: "a1", UserID: "alice", TestPaperID: "paper-1", StartedAt: started,
		SubmittedAt: &submitted, TimeSpentSeconds: &spent,
		TotalMarks: &total, ObtainedMarks: &obtained, Percentage: &pct, Rank: &rank,
		Draft: domain.AnswerSheet{"q1": "b", "q2": "t"},
	}
	answers := []domain.Answer{
		{ID: "ans-1", QuestionID: "q1", SelectedOptionID: "b", Correct: true, MarksObtained: 2},
		{ID: "ans-2", QuestionID: "q2", SelectedOptionID: "t"},
	}
	if err := s.Complete(ctx, done, answers); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := s.Get(ctx, "a1")
	if !got.Completed || *got.Percentage != 50 || *got.Rank != 1 || *got.TimeSpentSeconds != 600 {
		t.Fatalf("unexpected stored attempt: %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("submitted_at lost precision: %v", got.SubmittedAt)
	}

	other := 100.0
	again := done
	again.Percentage = &other
	err := s.Complete(ctx, again, []domain.Answer{{ID: "ans-3", QuestionID: "q3", SelectedOptionID: "x"}})
	if !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}
	stored, _ := s.Answers(ctx, "a1")
	if len(stored) != 2 || stored[0].QuestionID != "q1" || !stored[0].Correct {
		t.Fatalf("second completion must not touch answers: %+v", stored)
	}
	got, _ = s.Get(ctx, "a1")
	if *got.Percentage != 50 {
		t.Fatalf("second completion changed aggregates: %v", *got.Percentage)
	}

	if err := s.SaveDraft(ctx, "a1", domain.AnswerSheet{"q1": "a"}); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected draft rejected, got %v", err)
	}
	if err := s.Complete(ctx, domain.Attempt{ID: "nope"}, nil); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreQueries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, user := range []string{"alice", "bob", "carol"} {
		at := started.Add(time.Duration(i) * time.Hour)
		if err := s.Create(ctx, domain.Attempt{ID: "a-" + user, UserID: user, TestPaperID: "paper-1", StartedAt: at}); err != nil {
			t.Fatalf("create %s: %v", user, err)
		}
	}
	for _, user := range []string{"alice", "bob"} {
		pct, now := 40.0, started.Add(3*time.Hour)
		a := domain.Attempt{ID: "a-" + user, UserID: user, TestPaperID: "paper-1", StartedAt: started, SubmittedAt: &now, Percentage: &pct}
		ans := []domain.Answer{{ID: "ans-" + user, QuestionID: "q1", SelectedOptionID: "b", Correct: user == "alice"}}
		if err := s.Complete(ctx, a, ans); err != nil {
			t.Fatalf("complete %s: %v", user, err)
		}
	}

	completed, err := s.CompletedByPaper(ctx, "paper-1")
	if err != nil || len(completed) != 2 {
		t.Fatalf("completed by paper: %v %v", completed, err)
	}
	mine, _ := s.CompletedByLearner(ctx, "alice")
	if len(mine) != 1 || mine[0].ID != "a-alice" {
		t.Fatalf("completed by learner: %+v", mine)
	}
	pending, _ := s.InProgressBefore(ctx, started.Add(3*time.Hour))
	if len(pending) != 1 || pending[0].UserID != "carol" {
		t.Fatalf("in progress: %+v", pending)
	}
	if pending, _ := s.InProgressBefore(ctx, started.Add(time.Hour)); len(pending) != 0 {
		t.Fatalf("carol started after the cutoff: %+v", pending)
	}

	byPaper, _ := s.AnswersByPaper(ctx, "paper-1")
	byAlice, _ := s.AnswersByLearner(ctx, "alice")
	if len(byPaper) != 2 || len(byAlice) != 1 || !byAlice[0].Correct {
		t.Fatalf("answers: paper=%+v alice=%+v", byPaper, byAlice)
	}

	papers, _ := s.PapersWithCompleted(ctx)
	if len(papers) != 1 || papers[0] != "paper-1" {
		t.Fatalf("papers with completed: %v", papers)
	}
	if err := s.UpdateRanks(ctx, map[string]int{"a-alice": 1, "a-bob": 1, "a-carol": 9}); err != nil {
		t.Fatalf("update ranks: %v", err)
	}
	carol, _ := s.Get(ctx, "a-carol")
	if carol.Rank != nil {
		t.Fatalf("in-progress attempt must stay unranked")
	}
	if n, _ := s.CountAttempts(ctx); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}
