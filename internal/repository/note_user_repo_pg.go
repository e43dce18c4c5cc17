package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mysbind/userhub/internal/model"
)

type pgNoteUserRepository struct {
	db *gorm.DB
}

func NewPGNoteUserRepository(db *gorm.DB) NoteUserRepository {
	return &pgNoteUserRepository{db: db}
}

func (r *pgNoteUserRepository) Find(ctx context.Context, userKey string) (*model.NoteUser, error) {
	var user model.NoteUser
	err := r.db.WithContext(ctx).Preload("Games").First(&user, "user_key = ?", userKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *pgNoteUserRepository) Save(ctx context.Context, user *model.NoteUser) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"ltuids", "updated_at"}),
			}).
			Create(user).Error
		if err != nil {
			return err
		}

		for i := range user.Games {
			game := &user.Games[i]
			game.UserKey = user.UserKey
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_key"}, {Name: "game"}},
				DoUpdates: clause.AssignmentColumns([]string{"uid", "reg_uids", "updated_at"}),
			}).Create(game).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
