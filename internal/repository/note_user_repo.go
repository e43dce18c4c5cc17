package repository

import (
	"context"

	"mysbind/userhub/internal/model"
)

// NoteUserRepository persists NoteUser rows together with their per-game rows.
type NoteUserRepository interface {
	// Find loads a user and its game rows. Returns ErrNotFound for unknown keys.
	Find(ctx context.Context, userKey string) (*model.NoteUser, error)
	// Save upserts the user row and every game row it carries. Game rows
	// not present in user.Games are left untouched.
	Save(ctx context.Context, user *model.NoteUser) error
}
