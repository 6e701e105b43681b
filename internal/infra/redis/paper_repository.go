package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"mock-exam-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PaperLoader fetches a full test paper from a backing store.
type PaperLoader interface {
	LoadPaper(ctx context.Context, paperID string) (domain.TestPaper, error)
}

// PaperRepository caches whole papers in Redis and falls back to a loader on cache miss.
// Papers are stored as JSON: SET paper:{paperID} {json} EX ttl
// paper:{paperID}:ver counts invalidations; a fill is dropped when it moved during the load,
// so a load racing an admin change on any instance cannot restore the old paper.
type PaperRepository struct {
	client *redis.Client
	loader PaperLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewPaperRepository(client *redis.Client, loader PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PaperRepository) GetPaper(ctx context.Context, paperID string) (domain.TestPaper, error) {
	if paper, ok := r.cached(ctx, paperID); ok {
		return paper, nil
	}

	result, err, _ := r.sf.Do(paperID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if paper, ok := r.cached(ctx, paperID); ok {
			return paper, nil
		}

		ver, err := r.version(ctx, r.client, paperID)
		if err != nil {
			return domain.TestPaper{}, err
		}
		paper, err := r.loader.LoadPaper(ctx, paperID)
		if err != nil {
			return domain.TestPaper{}, err
		}

		// best-effort fill; a failed or dropped write only costs another load
		if err := r.fill(ctx, paper, ver); err != nil && !errors.Is(err, errStaleFill) {
			log.Printf("cache paper %s: %v", paperID, err)
		}
		return paper, nil
	})
	if err != nil {
		return domain.TestPaper{}, err
	}
	return result.(domain.TestPaper), nil
}

var errStaleFill = errors.New("paper changed during load")

// fill caches the paper unless it was invalidated after ver was read.
func (r *PaperRepository) fill(ctx context.Context, paper domain.TestPaper, ver string) error {
	raw, err := json.Marshal(paper)
	if err != nil {
		return err
	}
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.version(ctx, tx, paper.ID)
		if err != nil {
			return err
		}
		if cur != ver {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(paper.ID), raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, r.versionKey(paper.ID))
}

// Invalidate removes the cached paper after an admin change and bumps its version so
// loads still in flight, here or on other instances, do not refill it.
func (r *PaperRepository) Invalidate(ctx context.Context, paperID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(paperID))
		pipe.Del(ctx, r.key(paperID))
		return nil
	})
	r.sf.Forget(paperID)
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *PaperRepository) version(ctx context.Context, c getter, paperID string) (string, error) {
	ver, err := c.Get(ctx, r.versionKey(paperID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return ver, err
}

func (r *PaperRepository) cached(ctx context.Context, paperID string) (domain.TestPaper, bool) {
	raw, err := r.client.Get(ctx, r.key(paperID)).Bytes()
	if err != nil {
		return domain.TestPaper{}, false
	}
	var paper domain.TestPaper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return domain.TestPaper{}, false
	}
	return paper, true
}

func (r *PaperRepository) key(paperID string) string {
	return "paper:" + paperID
}

func (r *PaperRepository) versionKey(paperID string) string {
	return "paper:" + paperID + ":ver"
}

func (r *PaperRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
