package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"mock-exam-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// PaperLoader fetches a full test paper from a backing store.
type PaperLoader interface {
	LoadPaper(ctx context.Context, paperID string) (domain.TestPaper, error)
}

// PaperRepository caches papers with TTL to avoid repeated DB hits.
type PaperRepository struct {
	loader PaperLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedPaper
	// gens counts invalidations per paper; a load only fills the cache if none happened meanwhile.
	gens map[string]uint64
}

type cachedPaper struct {
	paper     domain.TestPaper
	expiresAt time.Time
}

func NewPaperRepository(loader PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPaper),
		gens:   make(map[string]uint64),
	}
}

func (r *PaperRepository) GetPaper(ctx context.Context, paperID string) (domain.TestPaper, error) {
	if paper, ok := r.cached(paperID); ok {
		return paper, nil
	}

	result, err, _ := r.sf.Do(paperID, func() (interface{}, error) {
		if paper, ok := r.cached(paperID); ok {
			return paper, nil
		}

		r.mu.RLock()
		gen := r.gens[paperID]
		r.mu.RUnlock()

		paper, err := r.loader.LoadPaper(ctx, paperID)
		if err != nil {
			return domain.TestPaper{}, err
		}

		r.mu.Lock()
		if r.gens[paperID] == gen {
			r.cache[paperID] = cachedPaper{
				paper:     paper,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return paper, nil
	})
	if err != nil {
		return domain.TestPaper{}, err
	}
	return result.(domain.TestPaper), nil
}

// Invalidate drops a paper so the next read goes to the loader. A load already in flight
// still answers its callers but does not refill the cache, and later reads start a new load.
func (r *PaperRepository) Invalidate(_ context.Context, paperID string) error {
	r.mu.Lock()
	delete(r.cache, paperID)
	r.gens[paperID]++
	r.mu.Unlock()
	r.sf.Forget(paperID)
	return nil
}

func (r *PaperRepository) cached(paperID string) (domain.TestPaper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[paperID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.TestPaper{}, false
	}
	return entry.paper, true
}

func (r *PaperRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
