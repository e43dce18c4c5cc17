package repository

import (
	"context"

	"mysbind/userhub/internal/model"
)

type CookieRepository interface {
	Get(ctx context.Context, ltuid string) (*model.MysCookie, error)
	Upsert(ctx context.Context, cookie *model.MysCookie) error
	Delete(ctx context.Context, ltuid string) error
	// ListAll returns every stored cookie ordered by user key, then ltuid.
	ListAll(ctx context.Context) ([]model.MysCookie, error)
}
