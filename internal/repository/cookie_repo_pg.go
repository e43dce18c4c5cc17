package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mysbind/userhub/internal/model"
)

type pgCookieRepository struct {
	db *gorm.DB
}

func NewPGCookieRepository(db *gorm.DB) CookieRepository {
	return &pgCookieRepository{db: db}
}

func (r *pgCookieRepository) Get(ctx context.Context, ltuid string) (*model.MysCookie, error) {
	var cookie model.MysCookie
	if err := r.db.WithContext(ctx).First(&cookie, "ltuid = ?", ltuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cookie, nil
}

func (r *pgCookieRepository) Upsert(ctx context.Context, cookie *model.MysCookie) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ltuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_key", "cookie", "is_main", "uids", "updated_at"}),
		}).
		Create(cookie).Error
}

func (r *pgCookieRepository) Delete(ctx context.Context, ltuid string) error {
	return r.db.WithContext(ctx).Delete(&model.MysCookie{}, "ltuid = ?", ltuid).Error
}

func (r *pgCookieRepository) ListAll(ctx context.Context) ([]model.MysCookie, error) {
	var cookies []model.MysCookie
	err := r.db.WithContext(ctx).Order("user_key, ltuid").Find(&cookies).Error
	return cookies, err
}
