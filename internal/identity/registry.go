package identity

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mysbind/userhub/internal/repository"
)

// Registry is the process-wide cache of Records. It holds at most one Record
// per user key for the life of the process; there is no eviction.
type Registry struct {
	store  repository.NoteUserRepository
	source CredentialSource
	games  []Game
	logger *zap.Logger

	mu      sync.RWMutex
	records map[string]*Record
	loads   singleflight.Group
}

func NewRegistry(
	store repository.NoteUserRepository,
	source CredentialSource,
	games []Game,
	logger *zap.Logger,
) *Registry {
	if len(games) == 0 {
		games = DefaultGames
	}
	return &Registry{
		store:   store,
		source:  source,
		games:   append([]Game(nil), games...),
		logger:  logger,
		records: make(map[string]*Record),
	}
}

// Games returns the games every record of this registry indexes.
func (r *Registry) Games() []Game { return append([]Game(nil), r.games...) }

// GetOrLoad returns the cached Record for key, loading it on first use.
// Concurrent first loads of the same key share one load; failed loads are
// not cached.
func (r *Registry) GetOrLoad(ctx context.Context, key string) (*Record, error) {
	if rec, ok := r.cached(key); ok {
		return rec, nil
	}

	v, err, _ := r.loads.Do(key, func() (interface{}, error) {
		if rec, ok := r.cached(key); ok {
			return rec, nil
		}
		rec, err := loadRecord(ctx, key, r.games, r.store, r.source, r.logger)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.records[key] = rec
		r.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

func (r *Registry) cached(key string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Len returns the number of cached records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ForEach materializes a Record for every user the enumerator reports with at
// least one binding and calls fn with it, in user key order. Iteration stops
// when fn returns false or an error, or when ctx is done; users already
// visited are not rolled back.
func (r *Registry) ForEach(
	ctx context.Context,
	enum BindingEnumerator,
	fn func(ctx context.Context, rec *Record) (bool, error),
) error {
	bindings, err := enum.EnumerateBindings(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(bindings))
	for key, ids := range bindings {
		if len(ids) == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.GetOrLoad(ctx, key)
		if err != nil {
			return err
		}
		cont, err := fn(ctx, rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}
