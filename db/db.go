package db

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/jinzhu/gorm"
	"github.com/mattn/go-sqlite3"

	// sqlite3 driver for gorm
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func DefaultOptions() url.Values {
	return url.Values{
		// with this, multiple connections share a single data and schema cache.
		// see https://www.sqlite.org/sharedcache.html
		"cache": {"shared"},
		// with this, the db sleeps for a little while when locked. can prevent
		// a SQLITE_BUSY. see https://www.sqlite.org/c3ref/busy_timeout.html
		"_busy_timeout": {"30000"},
		"_journal_mode": {"WAL"},
		"_foreign_keys": {"true"},
	}
}

func mockOptions() url.Values {
	return url.Values{
		"_foreign_keys": {"true"},
	}
}

type DB struct {
	*gorm.DB
}

func New(path string, options url.Values) (*DB, error) {
	// https://github.com/mattn/go-sqlite3#connection-string
	url := url.URL{
		Scheme: "file",
		Opaque: path,
	}
	url.RawQuery = options.Encode()
	db, err := gorm.Open("sqlite3", url.String())
	if err != nil {
		return nil, fmt.Errorf("with gorm: %w", err)
	}
	db.SetLogger(log.New(os.Stdout, "gorm ", 0))
	db.DB().SetMaxOpenConns(1)
	return &DB{DB: db}, nil
}

func NewMock() (*DB, error) {
	return New(":memory:", mockOptions())
}

func (db *DB) GetSetting(key SettingKey) (string, error) {
	var setting Setting
	if err := db.Where("key=?", key).First(&setting).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	return setting.Value, nil
}

func (db *DB) SetSetting(key SettingKey, value string) error {
	return db.
		Where(Setting{Key: key}).
		Assign(Setting{Value: value}).
		FirstOrCreate(&Setting{}).
		Error
}

// IsUniqueViolation reports whether err came from breaking a unique index
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// GetUserByID returns gorm.ErrRecordNotFound if there is no user with id
func (db *DB) GetUserByID(id string) (*User, error) {
	var user User
	err := db.
		Where("id=?", id).
		First(&user).
		Error
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

func (db *DB) GetUserByEmail(email string) (*User, error) {
	var user User
	err := db.
		Where("email=?", NormaliseEmail(email)).
		First(&user).
		Error
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// GetOrCreateProfile returns the user's profile row, inserting an empty one
// the first time it is asked for
func (db *DB) GetOrCreateProfile(userID string) (*Profile, error) {
	var profile Profile
	err := db.
		Where(Profile{ID: userID}).
		FirstOrCreate(&profile).
		Error
	if err != nil {
		return nil, fmt.Errorf("find or create profile: %w", err)
	}
	return &profile, nil
}

// OwnedBy restricts a query to rows belonging to userID. every album query
// goes through it
func OwnedBy(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id=?", userID)
	}
}

func Active(db *gorm.DB) *gorm.DB {
	return db.Where("is_active=?", true)
}

// FindAlbum finds an active album owned by userID. gorm.ErrRecordNotFound is
// returned both for missing ids and for albums owned by someone else
func (db *DB) FindAlbum(userID, id string) (*Album, error) {
	var album Album
	err := db.
		Scopes(OwnedBy(userID), Active).
		Where("id=?", id).
		First(&album).
		Error
	if err != nil {
		return nil, err
	}
	return &album, nil
}

func (db *DB) WithTx(cb func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := cb(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
