package ctrlapi

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/mime"
)

const maxImageSize = 10 << 20

var (
	errNotImage      = errors.New("not an image")
	errImageTooLarge = errors.New("image too large")
)

// formImage returns the image uploaded as field of an already parsed multipart
// form, or nil if there wasn't one
func formImage(r *http.Request, field string) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil, nil
	}
	header := headers[0]
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.FromExtension(path.Ext(header.Filename))
	}
	if !mime.IsImage(contentType) {
		return nil, fmt.Errorf("%q: %w", header.Filename, errNotImage)
	}
	if header.Size > maxImageSize {
		return nil, fmt.Errorf("%q is %s: %w", header.Filename, humanize.IBytes(uint64(header.Size)), errImageTooLarge)
	}
	return header, nil
}

func imageErrorMessage(name string, err error) string {
	switch {
	case errors.Is(err, errNotImage):
		return fmt.Sprintf("%s must be an image file", name)
	case errors.Is(err, errImageTooLarge):
		return fmt.Sprintf("%s must be smaller than %s", name, humanize.IBytes(maxImageSize))
	default:
		return fmt.Sprintf("Invalid %s", strings.ToLower(name))
	}
}

func (c *Controller) uploadImage(bucket, key string, header *multipart.FileHeader, upsert bool) error {
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	if err := c.Blobs.Upload(bucket, key, file, blob.UploadOptions{Upsert: upsert}); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return nil
}
