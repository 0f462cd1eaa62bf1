package db

import (
	"fmt"
	"log"

	"github.com/jinzhu/gorm"
	"gopkg.in/gormigrate.v1"
)

func (db *DB) Migrate() error {
	options := &gormigrate.Options{
		TableName:      "migrations",
		IDColumnName:   "id",
		IDColumnSize:   255,
		UseTransaction: false,
	}

	// $ date '+%Y%m%d%H%M'
	migrations := []*gormigrate.Migration{
		construct("202507121905", migrateInitSchema),
		construct("202507121930", migrateAlbumListIDX),
		construct("202509141022", migrateProfilesForUsers),
	}

	return gormigrate.
		New(db.DB, options, migrations).
		Migrate()
}

func construct(id string, f func(*gorm.DB) error) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(db *gorm.DB) error {
			tx := db.Begin()
			defer tx.Commit()
			if err := f(tx); err != nil {
				return fmt.Errorf("%q: %w", id, err)
			}
			log.Printf("migration '%s' finished", id)
			return nil
		},
		Rollback: func(*gorm.DB) error {
			return nil
		},
	}
}

func migrateInitSchema(tx *gorm.DB) error {
	return tx.AutoMigrate(
		User{},
		Profile{},
		Album{},
		Setting{},
	).
		Error
}

func migrateAlbumListIDX(tx *gorm.DB) error {
	return tx.Model(Album{}).
		AddIndex("idx_album_user_id_is_active_created_at", "user_id", "is_active", "created_at").
		Error
}

func migrateProfilesForUsers(tx *gorm.DB) error {
	return tx.Exec(`
		INSERT INTO profiles (id, created_at, updated_at)
		SELECT users.id, users.created_at, users.created_at
		FROM users
		WHERE NOT EXISTS (SELECT 1 FROM profiles WHERE profiles.id=users.id)
	`).Error
}
