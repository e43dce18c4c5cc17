package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"mysbind/userhub/internal/model"
)

type memoryCookieRepository struct {
	mu      sync.RWMutex
	cookies map[string]model.MysCookie
}

func NewMemoryCookieRepository() CookieRepository {
	return &memoryCookieRepository{
		cookies: make(map[string]model.MysCookie),
	}
}

func (r *memoryCookieRepository) Get(_ context.Context, ltuid string) (*model.MysCookie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cookie, ok := r.cookies[ltuid]
	if !ok {
		return nil, ErrNotFound
	}
	cookie.Uids = cookie.Uids.Clone()
	return &cookie, nil
}

func (r *memoryCookieRepository) Upsert(_ context.Context, cookie *model.MysCookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored := *cookie
	stored.Uids = cookie.Uids.Clone()
	stored.UpdatedAt = now
	if existing, ok := r.cookies[cookie.Ltuid]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	r.cookies[cookie.Ltuid] = stored
	return nil
}

func (r *memoryCookieRepository) Delete(_ context.Context, ltuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cookies, ltuid)
	return nil
}

func (r *memoryCookieRepository) ListAll(_ context.Context) ([]model.MysCookie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.MysCookie, 0, len(r.cookies))
	for _, cookie := range r.cookies {
		cookie.Uids = cookie.Uids.Clone()
		out = append(out, cookie)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserKey != out[j].UserKey {
			return out[i].UserKey < out[j].UserKey
		}
		return out[i].Ltuid < out[j].Ltuid
	})
	return out, nil
}
