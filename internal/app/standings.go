package app

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/scoring"
)

// Board is the in-process live standings board of one test paper.
type Board struct {
	paperID     string
	now         func() time.Time
	mu          sync.RWMutex
	entries     []domain.StandingsEntry
	subscribers map[chan domain.Standings]struct{}
}

// NewBoard is exported for infrastructure layers that keep boards.
func NewBoard(paperID string) *Board {
	return NewBoardWithClock(paperID, time.Now)
}

// NewBoardWithClock allows deterministic timestamps in tests.
func NewBoardWithClock(paperID string, now func() time.Time) *Board {
	return &Board{
		paperID:     paperID,
		now:         now,
		subscribers: make(map[chan domain.Standings]struct{}),
	}
}

// Snapshot returns the current standings.
func (b *Board) Snapshot() domain.Standings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Replace swaps the board entries and pushes the new snapshot to every subscriber.
func (b *Board) Replace(entries []domain.StandingsEntry) domain.Standings {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = entries
	return b.broadcastLocked()
}

func (b *Board) subscribe() (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	initial := b.snapshotLocked()
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Board) broadcastLocked() domain.Standings {
	st := b.snapshotLocked()
	for ch := range b.subscribers {
		select {
		case ch <- st:
		default:
			// Slow subscriber: drop its oldest queued snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
	return st
}

func (b *Board) snapshotLocked() domain.Standings {
	entries := make([]domain.StandingsEntry, len(b.entries))
	copy(entries, b.entries)
	return domain.Standings{
		TestPaperID: b.paperID,
		Entries:     entries,
		UpdatedAt:   b.now(),
	}
}

// SubscribeStandings streams standings snapshots of a paper.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) SubscribeStandings(ctx context.Context, paperID string) (<-chan domain.Standings, func(), error) {
	if _, err := s.papers.GetPaper(ctx, paperID); err != nil {
		return nil, nil, err
	}
	board, err := s.boards.Acquire(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.standings(ctx, paperID)
	if err != nil {
		s.boards.Release(paperID)
		return nil, nil, err
	}
	board.Replace(entries)
	ch, unsubscribe := board.subscribe()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			s.boards.Release(paperID)
		})
	}, nil
}

// publishStandings refreshes watched boards. Failures only affect live viewers, so they are logged.
func (s *ExamService) publishStandings(ctx context.Context, paperID string) {
	if !s.boards.Watched(ctx, paperID) {
		return
	}
	entries, err := s.standings(ctx, paperID)
	if err != nil {
		log.Printf("standings %s: %v", paperID, err)
		return
	}
	if err := s.boards.Publish(ctx, paperID, entries); err != nil {
		log.Printf("standings %s: publish: %v", paperID, err)
	}
}

func (s *ExamService) standings(ctx context.Context, paperID string) ([]domain.StandingsEntry, error) {
	completed, err := s.attempts.CompletedByPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	percentages := make([]float64, len(completed))
	for i, a := range completed {
		percentages[i] = deref(a.Percentage)
	}
	ranks := scoring.Ranks(percentages)

	entries := make([]domain.StandingsEntry, len(completed))
	for i, a := range completed {
		entries[i] = domain.StandingsEntry{
			AttemptID:   a.ID,
			UserID:      a.UserID,
			Percentage:  percentages[i],
			Rank:        ranks[i],
			SubmittedAt: deref(a.SubmittedAt),
		}
	}
	// Rank first, then whoever submitted earlier, then attempt id for a stable order.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].AttemptID < entries[j].AttemptID
	})
	if s.standingsLimit > 0 && len(entries) > s.standingsLimit {
		entries = entries[:s.standingsLimit]
	}
	return entries, nil
}
