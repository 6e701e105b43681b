package scheduler

import (
	"context"
	"testing"
	"time"
)

type fakeJobs struct {
	reranks int
	sweeps  int
	grace   time.Duration
}

func (f *fakeJobs) RerankAll(context.Context) (int, error) {
	f.reranks++
	return 0, nil
}

func (f *fakeJobs) SweepExpired(_ context.Context, grace time.Duration) (int, error) {
	f.sweeps++
	f.grace = grace
	return 1, nil
}

func TestNewRegistersJobs(t *testing.T) {
	jobs := &fakeJobs{}
	c, err := New(context.Background(), jobs, Options{Rerank: "@every 5m", ExpirySweep: "@every 1m", Grace: 2 * time.Minute})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(entries))
	}
	for _, e := range entries {
		e.Job.Run()
	}
	if jobs.reranks != 1 || jobs.sweeps != 1 || jobs.grace != 2*time.Minute {
		t.Fatalf("unexpected runs: %+v", jobs)
	}
}

func TestNewSkipsDisabledJobs(t *testing.T) {
	c, err := New(context.Background(), &fakeJobs{}, Options{Rerank: "@every 5m"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("expected only rerank, got %d", len(c.Entries()))
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New(context.Background(), &fakeJobs{}, Options{Rerank: "every now and then"}); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}
