package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mock-exam-service/internal/domain"
)

func TestPaperRepositoryCaches(t *testing.T) {
	catalog := seededCatalog(t)
	loader := &countingLoader{PaperLoader: catalog}
	repo := NewPaperRepository(loader, time.Minute)

	if _, err := repo.GetPaper(context.Background(), "paper-1"); err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetPaper(context.Background(), "paper-1"); err != nil {
		t.Fatalf("get paper 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPaperRepositoryInvalidateReloads(t *testing.T) {
	catalog := seededCatalog(t)
	loader := &countingLoader{PaperLoader: catalog}
	repo := NewPaperRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetPaper(ctx, "paper-1"); err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if err := catalog.SetPaperActive(ctx, "paper-1", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := repo.Invalidate(ctx, "paper-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	paper, err := repo.GetPaper(ctx, "paper-1")
	if err != nil {
		t.Fatalf("get paper after invalidate: %v", err)
	}
	if paper.IsActive || loader.calls != 2 {
		t.Fatalf("expected reload of inactive paper, active=%v calls=%d", paper.IsActive, loader.calls)
	}
}

func TestPaperRepositoryExpires(t *testing.T) {
	catalog := seededCatalog(t)
	loader := &countingLoader{PaperLoader: catalog}
	repo := NewPaperRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetPaper(context.Background(), "paper-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetPaper(context.Background(), "paper-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, calls %d", loader.calls)
	}
}

func TestPaperRepositoryMissingPaper(t *testing.T) {
	repo := NewPaperRepository(NewCatalog(), time.Minute)
	_, err := repo.GetPaper(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPaperRepositoryInvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	catalog := seededCatalog(t)
	loader := newGatedLoader(catalog)
	repo := NewPaperRepository(loader, time.Minute)

	done := make(chan domain.TestPaper)
	go func() {
		paper, _ := repo.GetPaper(ctx, "paper-1")
		done <- paper
	}()
	<-loader.entered

	// An admin closes the paper while the first load still holds the old copy.
	if err := catalog.SetPaperActive(ctx, "paper-1", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := repo.Invalidate(ctx, "paper-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(loader.release)
	if stale := <-done; !stale.IsActive {
		t.Fatalf("expected the in-flight load to return the copy it read")
	}

	paper, err := repo.GetPaper(ctx, "paper-1")
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if paper.IsActive || loader.count() != 2 {
		t.Fatalf("stale load refilled the cache: active=%v calls=%d", paper.IsActive, loader.count())
	}
}

// gatedLoader reads the paper, then holds its first load until release is closed.
type gatedLoader struct {
	PaperLoader
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func newGatedLoader(inner PaperLoader) *gatedLoader {
	return &gatedLoader{PaperLoader: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (l *gatedLoader) LoadPaper(ctx context.Context, paperID string) (domain.TestPaper, error) {
	paper, err := l.PaperLoader.LoadPaper(ctx, paperID)
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	if first {
		close(l.entered)
		<-l.release
	}
	return paper, err
}

func (l *gatedLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type countingLoader struct {
	PaperLoader
	calls int
}

func (l *countingLoader) LoadPaper(ctx context.Context, paperID string) (domain.TestPaper, error) {
	l.calls++
	return l.PaperLoader.LoadPaper(ctx, paperID)
}

func seededCatalog(t *testing.T) *Catalog {
	t.Helper()
	ctx := context.Background()
	c := NewCatalog()
	if err := c.PutExam(ctx, domain.Exam{ID: "exam-1", Name: "UPSC CSE", Category: "UPSC", IsActive: true}); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	if err := c.PutPaper(ctx, samplePaper()); err != nil {
		t.Fatalf("put paper: %v", err)
	}
	return c
}

func samplePaper() domain.TestPaper {
	return domain.TestPaper{
		ID:              "paper-1",
		ExamID:          "exam-1",
		Title:           "Prelims Mock 1",
		Subject:         "General Studies",
		DurationMinutes: 60,
		IsActive:        true,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Sections: []domain.Section{{
			ID:   "s1",
			Name: "Polity",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Type:   domain.QuestionMCQ,
					Marks:  2,
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
					},
				},
			},
		}},
	}
}
