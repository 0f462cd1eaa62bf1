// Package ctrlstorage serves public objects from the blob store, optionally
// scaled down
package ctrlstorage

import (
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/imagecache"
	"go.senan.xyz/crate/mime"
	"go.senan.xyz/crate/server/ctrlbase"
)

const cacheControl = "public, max-age=3600"

type Controller struct {
	*ctrlbase.Controller
	imageCache *imagecache.Cache
}

func New(b *ctrlbase.Controller, imageCache *imagecache.Cache) *Controller {
	return &Controller{
		Controller: b,
		imageCache: imageCache,
	}
}

// AddRoutes expects r to be prefixed with blob.PublicPrefix
func AddRoutes(c *Controller, r *mux.Router) {
	r.HandleFunc("/{bucket}/{key:.+}", c.ServeObject).Methods("GET", "HEAD")
}

func (c *Controller) ServeObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket, key := vars["bucket"], vars["key"]
	if !c.Blobs.HasBucket(bucket) || !c.Blobs.Exists(bucket, key) {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}

	if widthStr := r.URL.Query().Get("width"); widthStr != "" && c.imageCache != nil {
		width, err := strconv.Atoi(widthStr)
		if err != nil {
			http.Error(w, "width must be a number", http.StatusBadRequest)
			return
		}
		cachePath, err := c.imageCache.Get(bucket, key, width, func() (io.ReadCloser, error) {
			return c.Blobs.Download(bucket, key)
		})
		switch {
		case errors.Is(err, imagecache.ErrInvalidWidth):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			log.Printf("error scaling %s/%s: %v", bucket, key, err)
			http.Error(w, "error scaling image", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", cacheControl)
		http.ServeFile(w, r, cachePath)
		return
	}

	file, err := c.Blobs.Download(bucket, key)
	if errors.Is(err, blob.ErrObjectNotFound) || errors.Is(err, blob.ErrInvalidKey) {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("error opening %s/%s: %v", bucket, key, err)
		http.Error(w, "error opening object", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		log.Printf("error stating %s/%s: %v", bucket, key, err)
		http.Error(w, "error opening object", http.StatusInternalServerError)
		return
	}
	// anything else is sniffed by ServeContent
	if contentType := mime.FromExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeContent(w, r, path.Base(key), stat.ModTime(), file)
}
