package ctrlapi

import (
	"log"
	"net/http"
	"time"

	"github.com/jinzhu/gorm"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/server/ctrlbase"
)

func (c *Controller) ServeMe(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	return ctrlbase.JSON(struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}{user.ID, user.Email, user.CreatedAt})
}

func (c *Controller) ServeGetProfile(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	profile, err := c.DB.GetOrCreateProfile(user.ID)
	if err != nil {
		log.Printf("error getting profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch profile")
	}
	return ctrlbase.JSON(profile)
}

func (c *Controller) ServeUpdateProfile(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	fields, err := ctrlbase.BodyFields(r)
	if err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "Invalid request body")
	}

	updates := map[string]any{}
	if displayName, ok := fields["display_name"].(string); ok {
		updates["display_name"] = displayName
	}
	if avatarURL, ok := fields["avatar_url"]; ok {
		switch avatarURL := avatarURL.(type) {
		case nil:
			updates["avatar_url"] = gorm.Expr("NULL")
		case string:
			updates["avatar_url"] = avatarURL
		default:
			return ctrlbase.Error(http.StatusBadRequest, "avatar_url must be a string or null")
		}
	}
	if len(updates) == 0 {
		return ctrlbase.Error(http.StatusBadRequest, "No valid fields to update")
	}

	profile, err := c.upsertProfile(user.ID, updates)
	if err != nil {
		log.Printf("error updating profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to update profile")
	}
	return ctrlbase.JSON(profile)
}

func (c *Controller) ServeUploadAvatar(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	if _, err := ctrlbase.BodyFields(r); err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "Invalid form data")
	}
	avatar, err := formImage(r, "avatar")
	if err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "%s", imageErrorMessage("Avatar", err))
	}
	if avatar == nil {
		return ctrlbase.Error(http.StatusBadRequest, "No avatar file provided")
	}

	current, err := c.DB.GetOrCreateProfile(user.ID)
	if err != nil {
		log.Printf("error getting profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch profile")
	}

	key := blob.NewStampedKey(user.ID, avatar.Filename, time.Now())
	if err := c.uploadImage(blob.BucketProfilePhotos, key, avatar, true); err != nil {
		log.Printf("error uploading avatar: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to upload avatar")
	}
	avatarURL := c.ObjectURL(r, blob.BucketProfilePhotos, key)

	profile, err := c.upsertProfile(user.ID, map[string]any{"avatar_url": avatarURL})
	if err != nil {
		log.Printf("error updating profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to update profile")
	}
	if current.AvatarURL != nil && *current.AvatarURL != "" && *current.AvatarURL != avatarURL {
		if err := c.removeObject(blob.BucketProfilePhotos, *current.AvatarURL, user.ID); err != nil {
			log.Printf("error removing old avatar: %v", err)
		}
	}
	return ctrlbase.JSON(profile)
}

func (c *Controller) ServeDeleteAvatar(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	current, err := c.DB.GetOrCreateProfile(user.ID)
	if err != nil {
		log.Printf("error getting profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch profile")
	}
	if current.AvatarURL != nil && *current.AvatarURL != "" {
		if err := c.removeObject(blob.BucketProfilePhotos, *current.AvatarURL, user.ID); err != nil {
			log.Printf("error removing avatar: %v", err)
		}
	}
	profile, err := c.upsertProfile(user.ID, map[string]any{"avatar_url": gorm.Expr("NULL")})
	if err != nil {
		log.Printf("error updating profile: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to update profile")
	}
	return ctrlbase.JSON(profile)
}

// upsertProfile applies updates to the user's profile, creating it first if
// it's missing, and returns the stored row
func (c *Controller) upsertProfile(userID string, updates map[string]any) (*db.Profile, error) {
	var profile *db.Profile
	err := c.DB.WithTx(func(tx *gorm.DB) error {
		var p db.Profile
		if err := tx.Where(db.Profile{ID: userID}).FirstOrCreate(&p).Error; err != nil {
			return err
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id=?", userID).First(&p).Error; err != nil {
			return err
		}
		profile = &p
		return nil
	})
	return profile, err
}
