package memory

import (
	"context"
	"sync"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"
)

// BoardStore is an in-memory implementation of app.BoardRepository for a single instance.
type BoardStore struct {
	mu     sync.Mutex
	boards map[string]*heldBoard
}

type heldBoard struct {
	board *app.Board
	refs  int
}

func NewBoardStore() *BoardStore {
	return &BoardStore{
		boards: make(map[string]*heldBoard),
	}
}

// Acquire returns the paper's board, creating it on first use, and counts one viewer.
func (s *BoardStore) Acquire(_ context.Context, paperID string) (*app.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.boards[paperID]
	if !ok {
		h = &heldBoard{board: app.NewBoard(paperID)}
		s.boards[paperID] = h
	}
	h.refs++
	return h.board, nil
}

// Release drops one viewer; the board goes away with the last one.
func (s *BoardStore) Release(paperID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.boards[paperID]
	if !ok {
		return
	}
	h.refs--
	if h.refs <= 0 {
		delete(s.boards, paperID)
	}
}

func (s *BoardStore) Watched(_ context.Context, paperID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.boards[paperID]
	return ok
}

func (s *BoardStore) Publish(_ context.Context, paperID string, entries []domain.StandingsEntry) error {
	s.mu.Lock()
	h, ok := s.boards[paperID]
	s.mu.Unlock()
	if ok {
		h.board.Replace(entries)
	}
	return nil
}
