package db

// see migrations.go for how these tables came to be

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

type SettingKey string

const (
	SessionKey SettingKey = "session_key"
)

type Setting struct {
	Key   SettingKey `gorm:"not null;primary_key;auto_increment:false" sql:"default: null"`
	Value string     `sql:"default: null"`
}

type User struct {
	ID           string    `gorm:"primary_key"             json:"id"`
	Email        string    `gorm:"not null;unique_index"   json:"email"`
	PasswordHash string    `gorm:"not null"                json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(scope *gorm.Scope) error {
	if u.ID != "" {
		return nil
	}
	return scope.SetColumn("ID", uuid.NewString())
}

func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile shares its primary key with the User it describes
type Profile struct {
	ID          string    `gorm:"primary_key" json:"id"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

type Condition string

const (
	ConditionMint     Condition = "Mint"
	ConditionNearMint Condition = "Near Mint"
	ConditionVeryGood Condition = "Very Good"
	ConditionGood     Condition = "Good"
	ConditionFair     Condition = "Fair"
	ConditionPoor     Condition = "Poor"
)

//nolint:gochecknoglobals
var Conditions = []Condition{
	ConditionMint,
	ConditionNearMint,
	ConditionVeryGood,
	ConditionGood,
	ConditionFair,
	ConditionPoor,
}

type Album struct {
	ID                   string     `gorm:"primary_key"                    json:"id"`
	UserID               string     `gorm:"not null;index"                 json:"user_id"`
	MusicBrainzReleaseID *string    `gorm:"column:musicbrainz_release_id"  json:"musicbrainz_release_id"`
	Artist               string     `gorm:"not null;index"                 json:"artist"`
	AlbumTitle           string     `gorm:"not null"                       json:"album_title"`
	ReleaseYear          *int       `json:"release_year"`
	CoverArtURL          *string    `json:"cover_art_url"`
	Condition            *Condition `json:"condition"`
	PersonalNotes        *string    `json:"personal_notes"`
	DateAdded            time.Time  `json:"date_added"`
	DateRemoved          *time.Time `json:"date_removed"`
	IsActive             bool       `gorm:"not null;index"                 json:"is_active"`
	CreatedAt            time.Time  `gorm:"index"                          json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (a *Album) BeforeCreate(scope *gorm.Scope) error {
	if a.DateAdded.IsZero() {
		if err := scope.SetColumn("DateAdded", time.Now()); err != nil {
			return err
		}
	}
	if a.ID != "" {
		return nil
	}
	return scope.SetColumn("ID", uuid.NewString())
}

func (a *Album) HasCover() bool {
	return a.CoverArtURL != nil && *a.CoverArtURL != ""
}
