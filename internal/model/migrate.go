package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&NoteUser{},
		&NoteUserGame{},
		&MysCookie{},
	); err != nil {
		return err
	}

	// Main-cookie lookups per user.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_mys_cookies_main " +
			"ON mys_cookies (user_key) WHERE is_main",
	).Error
}
