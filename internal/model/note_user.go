package model

import (
	"time"

	"github.com/google/uuid"
)

// NoteUser is the persisted state of one bot user, keyed by the chat account id.
type NoteUser struct {
	UserKey   string    `gorm:"type:varchar(64);primaryKey" json:"user_key"`
	Ltuids    string    `gorm:"type:text;not null;default:''" json:"ltuids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Games []NoteUserGame `gorm:"foreignKey:UserKey;references:UserKey" json:"games,omitempty"`
}

func (NoteUser) TableName() string { return "note_users" }

// Game returns the per-game row for code, or nil.
func (u *NoteUser) Game(code string) *NoteUserGame {
	for i := range u.Games {
		if u.Games[i].Game == code {
			return &u.Games[i]
		}
	}
	return nil
}

// NoteUserGame holds the last chosen UID and the serialized manual
// registrations of one user for one game.
type NoteUserGame struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserKey   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_note_user_game" json:"user_key"`
	Game      string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_note_user_game" json:"game"`
	Uid       string    `gorm:"type:varchar(32);not null;default:''" json:"uid"`
	RegUids   string    `gorm:"type:text;not null;default:'{}'" json:"reg_uids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NoteUserGame) TableName() string { return "note_user_games" }
