package repository

import (
	"context"
	"sync"
	"time"

	"mysbind/userhub/internal/model"
)

type memoryNoteUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.NoteUser
}

// NewMemoryNoteUserRepository returns a process-local NoteUserRepository.
// Stored rows are copied on the way in and out.
func NewMemoryNoteUserRepository() NoteUserRepository {
	return &memoryNoteUserRepository{
		users: make(map[string]model.NoteUser),
	}
}

func (r *memoryNoteUserRepository) Find(_ context.Context, userKey string) (*model.NoteUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userKey]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyNoteUser(user)
	return &out, nil
}

func (r *memoryNoteUserRepository) Save(_ context.Context, user *model.NoteUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored, ok := r.users[user.UserKey]
	if !ok {
		stored = model.NoteUser{UserKey: user.UserKey, CreatedAt: now}
	}
	stored.Ltuids = user.Ltuids
	stored.UpdatedAt = now

	for _, game := range user.Games {
		game.UserKey = user.UserKey
		game.UpdatedAt = now
		if existing := stored.Game(game.Game); existing != nil {
			existing.Uid = game.Uid
			existing.RegUids = game.RegUids
			existing.UpdatedAt = now
			continue
		}
		game.CreatedAt = now
		stored.Games = append(stored.Games, game)
	}

	r.users[user.UserKey] = copyNoteUser(stored)
	return nil
}

func copyNoteUser(u model.NoteUser) model.NoteUser {
	u.Games = append([]model.NoteUserGame(nil), u.Games...)
	return u
}
