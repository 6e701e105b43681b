package sqldb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/infra/sqldb"
)

func TestCustomQuizStoreRoundTripAndOwnerScope(t *testing.T) {
	ctx := context.Background()
	s := sqldb.NewCustomQuizStore(newDB(t))

	older := domain.CustomQuiz{
		ID:              "q1",
		UserID:          "alice",
		Title:           "Polity drill",
		QuestionCount:   20,
		DurationMinutes: 30,
		SubjectIDs:      []string{"upsc:general-studies"},
		CreatedAt:       started,
	}
	newer := older
	newer.ID = "q2"
	newer.Title = "History drill"
	newer.TopicIDs = []string{"upsc:general-studies/history"}
	newer.CreatedAt = started.Add(time.Hour)
	other := older
	other.ID = "q3"
	other.UserID = "bob"
	for _, q := range []domain.CustomQuiz{older, newer, other} {
		if err := s.Create(ctx, q); err != nil {
			t.Fatalf("create %s: %v", q.ID, err)
		}
	}

	mine, err := s.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "q2" || mine[1].ID != "q1" {
		t.Fatalf("expected newest first, got %+v", mine)
	}
	if len(mine[0].TopicIDs) != 1 || mine[0].TopicIDs[0] != "upsc:general-studies/history" {
		t.Fatalf("topic ids lost: %+v", mine[0])
	}
	if mine[1].TopicIDs == nil || len(mine[1].TopicIDs) != 0 {
		t.Fatalf("expected empty topic list, got %#v", mine[1].TopicIDs)
	}
	if mine[1].SubjectIDs[0] != "upsc:general-studies" || !mine[1].CreatedAt.Equal(started) {
		t.Fatalf("unexpected quiz: %+v", mine[1])
	}

	if err := s.Delete(ctx, "alice", "q3"); !errors.Is(err, domain.ErrCustomQuizNotFound) {
		t.Fatalf("expected bob's quiz to look missing, got %v", err)
	}
	if err := s.Delete(ctx, "alice", "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mine, _ = s.ListByUser(ctx, "alice"); len(mine) != 1 {
		t.Fatalf("expected one quiz left, got %+v", mine)
	}
}
