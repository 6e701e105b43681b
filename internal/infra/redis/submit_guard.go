package redis

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmitGuard is a SET NX lock shared by every instance, so two replicas cannot grade the
// same attempt at once. The database write stays the source of truth; this only fails fast.
type SubmitGuard struct {
	client *redis.Client
}

func NewSubmitGuard(client *redis.Client) *SubmitGuard {
	return &SubmitGuard{client: client}
}

func (g *SubmitGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *SubmitGuard) Release(ctx context.Context, key, token string) {
	if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil {
		log.Printf("release %s: %v", key, err)
	}
}
