// Package ctrlapi provides the json api for albums, profiles, and release
// metadata lookups
package ctrlapi

import (
	"errors"
	"fmt"
	"log"

	"github.com/gorilla/mux"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/imagecache"
	"go.senan.xyz/crate/musicbrainz"
	"go.senan.xyz/crate/server/ctrlbase"
)

var errNotOwned = errors.New("object not owned by user")

type Controller struct {
	*ctrlbase.Controller
	musicBrainz *musicbrainz.Client
	imageCache  *imagecache.Cache
}

func New(b *ctrlbase.Controller, musicBrainz *musicbrainz.Client, imageCache *imagecache.Cache) *Controller {
	return &Controller{
		Controller:  b,
		musicBrainz: musicBrainz,
		imageCache:  imageCache,
	}
}

func AddRoutes(c *Controller, r *mux.Router) {
	r.Use(c.WithSession, c.WithUser)

	// public metadata lookups
	r.Handle("/search-albums", c.H(c.ServeSearchAlbums)).Methods("GET")
	r.Handle("/cover-art", c.H(c.ServeCoverArt)).Methods("GET")

	// user routes (if session is valid)
	routUser := r.NewRoute().Subrouter()
	routUser.Use(c.WithRequireUser)
	routUser.Handle("/me", c.H(c.ServeMe)).Methods("GET")
	routUser.Handle("/albums", c.H(c.ServeGetAlbums)).Methods("GET")
	routUser.Handle("/albums", c.H(c.ServeCreateAlbum)).Methods("POST")
	routUser.Handle("/albums/{id}", c.H(c.ServeGetAlbum)).Methods("GET")
	routUser.Handle("/albums/{id}", c.H(c.ServeUpdateAlbum)).Methods("PUT")
	routUser.Handle("/albums/{id}", c.H(c.ServeDeleteAlbum)).Methods("DELETE")
	routUser.Handle("/artists", c.H(c.ServeGetArtists)).Methods("GET")
	routUser.Handle("/stats", c.H(c.ServeGetStats)).Methods("GET")
	routUser.Handle("/profile", c.H(c.ServeGetProfile)).Methods("GET")
	routUser.Handle("/profile", c.H(c.ServeUpdateProfile)).Methods("PATCH")
	routUser.Handle("/profile/avatar", c.H(c.ServeUploadAvatar)).Methods("POST")
	routUser.Handle("/profile/avatar", c.H(c.ServeDeleteAvatar)).Methods("DELETE")
}

// removeObject deletes the object ref points to, ref being a public url or a
// bare key. objects outside the user's prefix are never touched
func (c *Controller) removeObject(bucket, ref, userID string) error {
	key, err := blob.ObjectKey(bucket, ref)
	if err != nil {
		return err
	}
	if !blob.OwnedBy(key, userID) {
		return fmt.Errorf("%q: %w", key, errNotOwned)
	}
	if err := c.Blobs.Remove(bucket, key); err != nil {
		return err
	}
	if c.imageCache != nil {
		if err := c.imageCache.Evict(bucket, key); err != nil {
			log.Printf("error evicting scaled copies of %s/%s: %v", bucket, key, err)
		}
	}
	return nil
}
