package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// localGuard is the single-process SubmitGuard used when no shared one is configured.
type localGuard struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token string
	until time.Time
}

func newLocalGuard() *localGuard {
	return &localGuard{held: make(map[string]lease), clock: time.Now}
}

func (g *localGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if l, ok := g.held[key]; ok && now.Before(l.until) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[key] = lease{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (g *localGuard) Release(_ context.Context, key, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.held[key]; ok && l.token == token {
		delete(g.held, key)
	}
}
