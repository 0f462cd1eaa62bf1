// Package imagecache keeps scaled copies of stored images on disk
package imagecache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidWidth = errors.New("invalid width")

const (
	MinWidth = 16
	MaxWidth = 2048

	format = "jpg"
)

type OpenFunc func() (io.ReadCloser, error)

type Cache struct {
	dir   string
	group singleflight.Group
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("make cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) prefix(bucket, key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s-%s", bucket, hex.EncodeToString(sum[:]))
}

func (c *Cache) Path(bucket, key string, width int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-%d.%s", c.prefix(bucket, key), width, format))
}

// Get returns the path to a copy of the object scaled to width, creating it
// from open if it's not cached yet. concurrent calls for the same entry share
// one resize
func (c *Cache) Get(bucket, key string, width int, open OpenFunc) (string, error) {
	if width < MinWidth || width > MaxWidth {
		return "", fmt.Errorf("%d not in [%d, %d]: %w", width, MinWidth, MaxWidth, ErrInvalidWidth)
	}
	cachePath := c.Path(bucket, key, width)
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}
	_, err, _ := c.group.Do(cachePath, func() (any, error) {
		reader, err := open()
		if err != nil {
			return nil, fmt.Errorf("open original: %w", err)
		}
		defer reader.Close()
		return nil, ScaleAndSave(reader, cachePath, width)
	})
	if err != nil {
		return "", err
	}
	return cachePath, nil
}

// Evict drops every cached size of an object
func (c *Cache) Evict(bucket, key string) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, c.prefix(bucket, key)+"-*"))
	if err != nil {
		return fmt.Errorf("glob cache: %w", err)
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cached %q: %w", match, err)
		}
	}
	return nil
}

// ScaleAndSave encodes to a temporary file and renames it to cachePath, so a
// cache hit is always a complete image
func ScaleAndSave(reader io.Reader, cachePath string, width int) error {
	src, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("resizing: %w", err)
	}
	if width > src.Bounds().Dx() {
		// don't upscale images
		width = src.Bounds().Dx()
	}

	tmp, err := os.CreateTemp(filepath.Dir(cachePath), ".scale-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := imaging.Encode(tmp, imaging.Resize(src, width, 0, imaging.Lanczos), imaging.JPEG); err != nil {
		return fmt.Errorf("caching `%s`: %w", cachePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}
