package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// GameUids maps a game code to the UIDs a cookie reports for it.
// Stored as JSONB.
type GameUids map[string][]string

func (g GameUids) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

func (g *GameUids) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("GameUids.Scan: type assertion to []byte failed")
	}
	var out GameUids
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	*g = out
	return nil
}

// Clone returns a deep copy.
func (g GameUids) Clone() GameUids {
	if g == nil {
		return nil
	}
	out := make(GameUids, len(g))
	for game, uids := range g {
		out[game] = append([]string(nil), uids...)
	}
	return out
}

// MysCookie is a bound miHoYo session cookie. Cookie holds the sealed value.
type MysCookie struct {
	Ltuid     string    `gorm:"type:varchar(32);primaryKey" json:"ltuid"`
	UserKey   string    `gorm:"type:varchar(64);not null;index" json:"user_key"`
	Cookie    string    `gorm:"type:text;not null;default:''" json:"-"`
	IsMain    bool      `gorm:"not null;default:false" json:"is_main"`
	Uids      GameUids  `gorm:"type:jsonb" json:"uids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MysCookie) TableName() string { return "mys_cookies" }
