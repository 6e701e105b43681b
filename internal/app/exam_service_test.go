package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/infra/memory"
)

func TestListCategoriesAndPapers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	must(t, f.catalog.PutExam(ctx, domain.Exam{ID: "sbi-po", Name: "SBI PO", Category: "BANKING", IsActive: true}))
	must(t, f.catalog.PutExam(ctx, domain.Exam{ID: "old", Name: "Retired", Category: "SSC", IsActive: false}))

	cats, err := f.service.ListCategories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "BANKING" || cats[1].Name != "UPSC" {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	papers, err := f.service.ListPapers(ctx, " upsc ")
	if err != nil {
		t.Fatalf("papers: %v", err)
	}
	if len(papers) != 1 || papers[0].ID != "paper-1" || papers[0].TotalMarks != 4 {
		t.Fatalf("unexpected papers: %+v", papers)
	}

	if _, err := f.service.ListPapers(ctx, "  "); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestPaperForLearnerHidesAnswerKey(t *testing.T) {
	f := newFixture(t)
	paper, err := f.service.PaperForLearner(context.Background(), "alice", "paper-1")
	if err != nil {
		t.Fatalf("paper: %v", err)
	}
	for _, q := range paper.Questions() {
		if _, ok := q.CorrectOption(); ok {
			t.Fatalf("question %s leaks its answer", q.ID)
		}
	}
}

func TestAccessGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.PaperForLearner(ctx, "mallory", "paper-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for unenrolled learner, got %v", err)
	}
	if _, err := f.service.PaperForLearner(ctx, "alice", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	must(t, f.service.SetPaperActive(ctx, "paper-1", false))
	if _, err := f.service.Start(ctx, "alice", "paper-1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for inactive paper, got %v", err)
	}
}

func TestStartResumesExistingAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.service.Start(ctx, "alice", "paper-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.RemainingSeconds != 3600 {
		t.Fatalf("expected full hour remaining, got %d", first.RemainingSeconds)
	}

	f.advance(10 * time.Minute)
	again, err := f.service.Start(ctx, "alice", "paper-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if again.Attempt.ID != first.Attempt.ID {
		t.Fatalf("expected the same attempt on resume")
	}
	if again.RemainingSeconds != 3000 {
		t.Fatalf("expected 3000s remaining, got %d", again.RemainingSeconds)
	}
}

func TestSaveDraftIsMergedIntoSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.Start(ctx, "alice", "paper-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	must(t, f.service.SaveDraft(ctx, "alice", "paper-1", domain.AnswerSheet{"q1": "b", "q2": "t"}))

	res, err := f.service.Submit(ctx, submitReq("alice", domain.AnswerSheet{"q2": "f"}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ObtainedMarks != 4 || res.Percentage != 100 {
		t.Fatalf("expected draft q1 and submitted q2 to both count, got %+v", res)
	}

	err = f.service.SaveDraft(ctx, "alice", "paper-1", domain.AnswerSheet{"q1": "a"})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected drafts rejected after submission, got %v", err)
	}
}

func TestSaveDraftRejectsEmptySheet(t *testing.T) {
	f := newFixture(t)
	err := f.service.SaveDraft(context.Background(), "alice", "paper-1", domain.AnswerSheet{})
	if !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestSubscribeStandingsReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ch, cancel, err := f.service.SubscribeStandings(ctx, "paper-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty board, got %+v", initial.Entries)
	}

	if _, err := f.service.Submit(ctx, submitReq("alice", domain.AnswerSheet{"q1": "b", "q2": "t"})); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	<-ch
	if _, err := f.service.Submit(ctx, submitReq("bob", domain.AnswerSheet{"q1": "b", "q2": "f"})); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	update := <-ch
	if len(update.Entries) != 2 {
		t.Fatalf("expected two entries, got %+v", update.Entries)
	}
	if update.Entries[0].UserID != "bob" || update.Entries[0].Rank != 1 || update.Entries[1].Rank != 2 {
		t.Fatalf("expected bob to lead, got %+v", update.Entries)
	}
}

// leavingBoards runs onAcquire right after a viewer has taken the board, before it subscribes.
type leavingBoards struct {
	*memory.BoardStore
	onAcquire func()
}

func (b *leavingBoards) Acquire(ctx context.Context, paperID string) (*app.Board, error) {
	board, err := b.BoardStore.Acquire(ctx, paperID)
	if b.onAcquire != nil {
		hook := b.onAcquire
		b.onAcquire = nil
		hook()
	}
	return board, err
}

func TestStandingsSurviveViewerLeavingDuringSubscribe(t *testing.T) {
	ctx := context.Background()
	boards := &leavingBoards{BoardStore: memory.NewBoardStore()}
	f := newFixtureWithBoards(t, boards)

	chA, cancelA, err := f.service.SubscribeStandings(ctx, "paper-1")
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	<-chA
	boards.onAcquire = cancelA

	chB, cancelB, err := f.service.SubscribeStandings(ctx, "paper-1")
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	defer cancelB()
	<-chB

	if _, err := f.service.Submit(ctx, submitReq("alice", domain.AnswerSheet{"q1": "b"})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case update := <-chB:
		if len(update.Entries) != 1 || update.Entries[0].UserID != "alice" {
			t.Fatalf("unexpected standings: %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("remaining viewer never received the post-submit standings")
	}
}

func TestStandingsCancelTwiceKeepsOtherViewer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chA, cancelA, err := f.service.SubscribeStandings(ctx, "paper-1")
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	<-chA
	chB, cancelB, err := f.service.SubscribeStandings(ctx, "paper-1")
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	defer cancelB()
	<-chB

	cancelA()
	cancelA()

	if _, err := f.service.Submit(ctx, submitReq("bob", domain.AnswerSheet{"q2": "f"})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case update := <-chB:
		if len(update.Entries) != 1 {
			t.Fatalf("unexpected standings: %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("viewer B lost its board")
	}
}

func TestSubscribeStandingsUnknownPaper(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.service.SubscribeStandings(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
