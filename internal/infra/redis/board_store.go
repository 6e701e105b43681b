package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// BoardStore fans standings out across instances over Redis pub/sub.
// Notes:
//   - Boards live in a local map so the in-process broadcast is reused.
//   - An instance subscribes to standings:{paperID} while it holds a board for the paper.
//   - Publish goes through Redis, so the submitting instance updates its own boards the same way.
type BoardStore struct {
	client *redis.Client
	mu     sync.Mutex
	boards map[string]*liveBoard
}

type liveBoard struct {
	board *app.Board
	refs  int
	sub   *redis.PubSub
}

func NewBoardStore(client *redis.Client) *BoardStore {
	return &BoardStore{
		client: client,
		boards: make(map[string]*liveBoard),
	}
}

// Acquire returns the paper's board and counts one viewer. The first viewer on this
// instance subscribes to the paper's channel and waits for the confirmation.
func (s *BoardStore) Acquire(ctx context.Context, paperID string) (*app.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lb, ok := s.boards[paperID]; ok {
		lb.refs++
		return lb.board, nil
	}

	sub := s.client.Subscribe(ctx, s.channel(paperID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe standings %s: %w", paperID, err)
	}
	lb := &liveBoard{board: app.NewBoard(paperID), refs: 1, sub: sub}
	s.boards[paperID] = lb
	go relay(paperID, lb)
	return lb.board, nil
}

func relay(paperID string, lb *liveBoard) {
	for msg := range lb.sub.Channel() {
		var entries []domain.StandingsEntry
		if err := json.Unmarshal([]byte(msg.Payload), &entries); err != nil {
			log.Printf("standings %s: bad payload: %v", paperID, err)
			continue
		}
		lb.board.Replace(entries)
	}
}

// Release drops one viewer; the last one unsubscribes the instance.
func (s *BoardStore) Release(paperID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lb, ok := s.boards[paperID]
	if !ok {
		return
	}
	lb.refs--
	if lb.refs > 0 {
		return
	}
	delete(s.boards, paperID)
	if err := lb.sub.Close(); err != nil {
		log.Printf("standings %s: unsubscribe: %v", paperID, err)
	}
}

// Watched is true when this instance holds the board or any other instance subscribes.
func (s *BoardStore) Watched(ctx context.Context, paperID string) bool {
	s.mu.Lock()
	_, ok := s.boards[paperID]
	s.mu.Unlock()
	if ok {
		return true
	}
	ch := s.channel(paperID)
	counts, err := s.client.PubSubNumSub(ctx, ch).Result()
	if err != nil {
		log.Printf("standings %s: numsub: %v", paperID, err)
		return false
	}
	return counts[ch] > 0
}

func (s *BoardStore) Publish(ctx context.Context, paperID string, entries []domain.StandingsEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(paperID), raw).Err()
}

// Close unsubscribes every board held by this instance.
func (s *BoardStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, lb := range s.boards {
		_ = lb.sub.Close()
		delete(s.boards, id)
	}
}

func (s *BoardStore) channel(paperID string) string {
	return "standings:" + paperID
}
