// Package blob stores user uploaded objects (album covers, profile photos) in
// named buckets on disk. objects are laid out as
//
//	<base path>/<bucket>/<user id>/<file name>
//
// and are served publicly under /storage/v1/object/public/<bucket>/<key>
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.senan.xyz/crate/fileutil"
	"go.senan.xyz/crate/multierr"
)

var (
	ErrInvalidBasePath = errors.New("invalid base path")
	ErrUnknownBucket   = errors.New("unknown bucket")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrObjectExists    = errors.New("object already exists")
	ErrObjectNotFound  = errors.New("object not found")
	ErrNoObjectKey     = errors.New("could not extract object key")
)

const (
	BucketAlbumArt      = "album-art"
	BucketProfilePhotos = "profile-photos"
)

// PublicPrefix is the url path objects are served under
const PublicPrefix = "/storage/v1/object/public"

type UploadOptions struct {
	// Upsert replaces an existing object instead of failing with ErrObjectExists
	Upsert bool
}

type Store struct {
	basePath string
	buckets  []string
	mu       sync.Mutex
}

func NewStore(basePath string, buckets ...string) (*Store, error) {
	if basePath == "" {
		return nil, ErrInvalidBasePath
	}
	for _, bucket := range buckets {
		if err := os.MkdirAll(filepath.Join(basePath, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("make bucket dir %q: %w", bucket, err)
		}
	}
	return &Store{
		basePath: basePath,
		buckets:  buckets,
	}, nil
}

func (s *Store) HasBucket(bucket string) bool {
	return slices.Contains(s.buckets, bucket)
}

// Upload writes the object to a temporary file next to its destination, then
// renames it into place so readers never see a partial object
func (s *Store) Upload(bucket, key string, r io.Reader, opts UploadOptions) error {
	absPath, err := s.path(bucket, key)
	if err != nil {
		return err
	}

	defer lock(&s.mu)()

	if !opts.Upsert {
		if _, err := os.Stat(absPath); err == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectExists)
		}
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("make object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), absPath); err != nil {
		return fmt.Errorf("move object into place: %w", err)
	}
	return nil
}

func (s *Store) Download(bucket, key string) (*os.File, error) {
	absPath, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

func (s *Store) Exists(bucket, key string) bool {
	absPath, err := s.path(bucket, key)
	if err != nil {
		return false
	}
	stat, err := os.Stat(absPath)
	return err == nil && !stat.IsDir()
}

// Remove deletes objects from a bucket. keys that don't exist are skipped, and
// a bad key doesn't stop the others from being removed
func (s *Store) Remove(bucket string, keys ...string) error {
	defer lock(&s.mu)()

	var errs multierr.Err
	for _, key := range keys {
		absPath, err := s.path(bucket, key)
		if err != nil {
			errs.Add(err)
			continue
		}
		if err := os.Remove(absPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs.Add(fmt.Errorf("remove %s/%s: %w", bucket, key, err))
		}
	}
	return errs.Err()
}

func (s *Store) path(bucket, key string) (string, error) {
	if !s.HasBucket(bucket) {
		return "", fmt.Errorf("%q: %w", bucket, ErrUnknownBucket)
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	bucketPath := filepath.Join(s.basePath, bucket)
	p := filepath.Join(bucketPath, filepath.FromSlash(key))
	if !fileutil.HasPrefix(p, bucketPath) {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return p, nil
}

func checkKey(key string) error {
	switch {
	case key == "",
		path.IsAbs(key),
		path.Clean(key) != key,
		key == "..",
		strings.HasPrefix(key, "../"),
		strings.Contains(key, `\`):
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return nil
}

// PublicURL joins base (eg. https://example.com) with the public path of the
// object
func PublicURL(base, bucket, key string) string {
	return strings.TrimSuffix(base, "/") + path.Join(PublicPrefix, bucket, key)
}

// ObjectKey finds the object key referenced by ref. ref is either a public url
// for an object in bucket, in which case everything after the bucket path
// segment is returned, or already a key, in which case it is returned as is
func ObjectKey(bucket, ref string) (string, error) {
	if !strings.HasPrefix(ref, "http") {
		return ref, nil
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse object url: %w", err)
	}

	parts := strings.Split(refURL.Path, "/")
	if i := slices.Index(parts, bucket); i != -1 && i < len(parts)-1 {
		if key := strings.Join(parts[i+1:], "/"); key != "" {
			return key, nil
		}
	}

	expr := regexp.MustCompile(`/` + regexp.QuoteMeta(bucket) + `/(.+)$`)
	if match := expr.FindStringSubmatch(refURL.EscapedPath()); match != nil {
		if key, err := url.PathUnescape(match[1]); err == nil {
			return key, nil
		}
	}
	return "", fmt.Errorf("%q in %q: %w", ref, bucket, ErrNoObjectKey)
}

// UserIDFromKey returns the user id prefix of an object key
func UserIDFromKey(key string) string {
	userID, _, _ := strings.Cut(key, "/")
	return userID
}

// OwnedBy reports whether key lives under the user's prefix
func OwnedBy(key, userID string) bool {
	return userID != "" && UserIDFromKey(key) == userID && strings.Contains(key, "/")
}

// NewKey makes a unique key like <user id>/<uuid>.<ext> for a file uploaded by the user
func NewKey(userID, filename string) string {
	return path.Join(userID, uuid.NewString()+"."+extension(filename))
}

// NewStampedKey makes a key like <user id>/<unix millis>.<ext>
func NewStampedKey(userID, filename string, t time.Time) string {
	return path.Join(userID, fmt.Sprintf("%d.%s", t.UnixMilli(), extension(filename)))
}

func extension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	ext = strings.ToLower(strings.ReplaceAll(fileutil.Safe(ext), "_", ""))
	if ext == "" {
		return "bin"
	}
	return ext
}

func lock(mu *sync.Mutex) func() {
	mu.Lock()
	return mu.Unlock
}
