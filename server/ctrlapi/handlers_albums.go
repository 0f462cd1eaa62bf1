package ctrlapi

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	"github.com/rainycape/unidecode"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/server/ctrlbase"
	"go.senan.xyz/crate/validation"
)

type albumInput struct {
	Artist               string        `json:"artist"                 validate:"required,max=512"`
	AlbumTitle           string        `json:"album_title"            validate:"required,max=512"`
	ReleaseYear          *int          `json:"release_year"           validate:"omitempty,gte=1000,lte=9999"`
	Condition            *db.Condition `json:"condition"              validate:"omitempty,condition"`
	PersonalNotes        *string       `json:"personal_notes"         validate:"omitempty,max=10000"`
	MusicBrainzReleaseID *string       `json:"musicbrainz_release_id" validate:"omitempty,uuid"`
}

func (in *albumInput) apply(album *db.Album) {
	album.Artist = in.Artist
	album.AlbumTitle = in.AlbumTitle
	album.ReleaseYear = in.ReleaseYear
	album.Condition = in.Condition
	album.PersonalNotes = in.PersonalNotes
	album.MusicBrainzReleaseID = in.MusicBrainzReleaseID
}

// parseAlbumInput reads album fields from a form body, along with an optional
// cover image
func parseAlbumInput(r *http.Request) (*albumInput, *multipart.FileHeader, *ctrlbase.Response) {
	fields, err := ctrlbase.BodyFields(r)
	if err != nil {
		return nil, nil, ctrlbase.Error(http.StatusBadRequest, "Invalid form data")
	}
	str := func(key string) string {
		value, _ := fields[key].(string)
		return strings.TrimSpace(value)
	}
	optional := func(key string) *string {
		if value := str(key); value != "" {
			return &value
		}
		return nil
	}

	in := &albumInput{
		Artist:               str("artist"),
		AlbumTitle:           str("album_title"),
		PersonalNotes:        optional("personal_notes"),
		MusicBrainzReleaseID: optional("musicbrainz_release_id"),
	}
	if in.Artist == "" || in.AlbumTitle == "" {
		return nil, nil, ctrlbase.Error(http.StatusBadRequest, "Artist and Album Title are required")
	}
	if year := str("release_year"); year != "" {
		yearInt, err := strconv.Atoi(year)
		if err != nil {
			return nil, nil, ctrlbase.Error(http.StatusBadRequest, "release_year must be a whole number")
		}
		in.ReleaseYear = &yearInt
	}
	if condition := str("condition"); condition != "" {
		cond := db.Condition(condition)
		in.Condition = &cond
	}
	if err := validation.Struct(in); err != nil {
		return nil, nil, ctrlbase.Error(http.StatusBadRequest, "%v", err)
	}

	cover, err := formImage(r, "cover_image")
	if err != nil {
		return nil, nil, ctrlbase.Error(http.StatusBadRequest, "%s", imageErrorMessage("Cover image", err))
	}
	return in, cover, nil
}

type albumResponse struct {
	Success bool      `json:"success"`
	Album   *db.Album `json:"album"`
	Message string    `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Controller) ServeCreateAlbum(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	in, cover, resp := parseAlbumInput(r)
	if resp != nil {
		return resp
	}

	album := &db.Album{
		UserID:   user.ID,
		IsActive: true,
	}
	in.apply(album)

	var coverKey string
	if cover != nil {
		key := blob.NewKey(user.ID, cover.Filename)
		if err := c.uploadImage(blob.BucketAlbumArt, key, cover, false); err != nil {
			log.Printf("error uploading cover, saving album without it: %v", err)
		} else {
			coverKey = key
			coverURL := c.ObjectURL(r, blob.BucketAlbumArt, key)
			album.CoverArtURL = &coverURL
		}
	}

	if err := c.DB.Create(album).Error; err != nil {
		log.Printf("error saving album: %v", err)
		if coverKey != "" {
			if err := c.Blobs.Remove(blob.BucketAlbumArt, coverKey); err != nil {
				log.Printf("error removing orphaned cover: %v", err)
			}
		}
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to save album: %v", err)
	}
	return ctrlbase.JSON(albumResponse{
		Success: true,
		Album:   album,
		Message: "Album added successfully",
	})
}

// foldText lowercases and strips diacritics, so that "Sigur Rós" matches "sigur ros"
func foldText(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}

func filterAlbums(albums []*db.Album, query string) []*db.Album {
	query = foldText(query)
	filtered := make([]*db.Album, 0, len(albums))
	for _, album := range albums {
		if strings.Contains(foldText(album.Artist), query) || strings.Contains(foldText(album.AlbumTitle), query) {
			filtered = append(filtered, album)
		}
	}
	return filtered
}

func (c *Controller) ServeGetAlbums(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	params := r.URL.Query()

	albums := []*db.Album{}
	q := c.DB.
		Scopes(db.OwnedBy(user.ID), db.Active).
		Order("created_at DESC")
	if artist := params.Get("artist"); artist != "" {
		q = q.Where("artist=?", artist)
	}
	if err := q.Find(&albums).Error; err != nil {
		log.Printf("error finding albums: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch albums")
	}
	if query := strings.TrimSpace(params.Get("q")); query != "" {
		albums = filterAlbums(albums, query)
	}
	return ctrlbase.JSON(struct {
		Albums []*db.Album `json:"albums"`
	}{albums})
}

func (c *Controller) ServeGetAlbum(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	album, err := c.DB.FindAlbum(user.ID, mux.Vars(r)["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ctrlbase.Error(http.StatusNotFound, "Album not found")
	}
	if err != nil {
		log.Printf("error finding album: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch album")
	}
	return ctrlbase.JSON(struct {
		Album *db.Album `json:"album"`
	}{album})
}

func (c *Controller) ServeUpdateAlbum(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	album, err := c.DB.FindAlbum(user.ID, mux.Vars(r)["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ctrlbase.Error(http.StatusNotFound, "Album not found or you do not have permission to update it")
	}
	if err != nil {
		log.Printf("error finding album: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch album")
	}
	in, cover, resp := parseAlbumInput(r)
	if resp != nil {
		return resp
	}
	in.apply(album)

	oldCover := album.CoverArtURL
	switch {
	case cover != nil:
		key := blob.NewKey(user.ID, cover.Filename)
		if err := c.uploadImage(blob.BucketAlbumArt, key, cover, false); err != nil {
			log.Printf("error uploading cover, keeping the old one: %v", err)
			break
		}
		coverURL := c.ObjectURL(r, blob.BucketAlbumArt, key)
		album.CoverArtURL = &coverURL
	case r.FormValue("remove_image") == "true":
		album.CoverArtURL = nil
	}

	if err := c.DB.Save(album).Error; err != nil {
		log.Printf("error saving album: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to update album: %v", err)
	}
	if oldCover != nil && *oldCover != "" && album.CoverArtURL != oldCover {
		if err := c.removeObject(blob.BucketAlbumArt, *oldCover, user.ID); err != nil {
			log.Printf("error removing old cover: %v", err)
		}
	}
	return ctrlbase.JSON(albumResponse{
		Success: true,
		Album:   album,
		Message: "Album updated successfully",
	})
}

func (c *Controller) ServeDeleteAlbum(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	album, err := c.DB.FindAlbum(user.ID, mux.Vars(r)["id"])
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("error finding album: %v", err)
		}
		return ctrlbase.Error(http.StatusNotFound, "Album not found or you do not have permission to delete it")
	}
	if album.HasCover() {
		// a cover left behind is only wasted space
		if err := c.removeObject(blob.BucketAlbumArt, *album.CoverArtURL, user.ID); err != nil {
			log.Printf("error removing cover, deleting album anyway: %v", err)
		}
	}
	err = c.DB.
		Scopes(db.OwnedBy(user.ID)).
		Where("id=?", album.ID).
		Delete(db.Album{}).
		Error
	if err != nil {
		log.Printf("error deleting album: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to delete album: %v", err)
	}
	return ctrlbase.JSON(messageResponse{Message: "Album deleted successfully"})
}

func (c *Controller) ServeGetArtists(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	artists := []string{}
	err := c.DB.
		Model(db.Album{}).
		Scopes(db.OwnedBy(user.ID), db.Active).
		Where("artist != ''").
		Order("artist ASC").
		Pluck("DISTINCT artist", &artists).
		Error
	if err != nil {
		log.Printf("error finding artists: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch artists")
	}
	return ctrlbase.JSON(struct {
		Artists []string `json:"artists"`
	}{artists})
}

type statsResponse struct {
	TotalAlbums    int    `json:"total_albums"`
	ThisMonth      int    `json:"this_month"`
	TotalHuman     string `json:"total_human"`
	LastAddedHuman string `json:"last_added_human,omitempty"`
}

func (c *Controller) ServeGetStats(r *http.Request) *ctrlbase.Response {
	user := ctrlbase.User(r)
	albums := func() *gorm.DB {
		return c.DB.Model(db.Album{}).Scopes(db.OwnedBy(user.ID), db.Active)
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var resp statsResponse
	if err := albums().Count(&resp.TotalAlbums).Error; err != nil {
		log.Printf("error counting albums: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch stats")
	}
	if err := albums().Where("created_at >= ?", monthStart).Count(&resp.ThisMonth).Error; err != nil {
		log.Printf("error counting albums this month: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to fetch stats")
	}
	resp.TotalHuman = humanize.Comma(int64(resp.TotalAlbums))

	var last db.Album
	if err := albums().Order("created_at DESC").First(&last).Error; err == nil {
		resp.LastAddedHuman = humanize.Time(last.CreatedAt)
	}
	return ctrlbase.JSON(resp)
}
