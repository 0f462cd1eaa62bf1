package imagecache_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/crate/imagecache"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGet(t *testing.T) {
	t.Parallel()

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	original := testPNG(t, 200, 100)
	var opens atomic.Int32
	open := func() (io.ReadCloser, error) {
		opens.Add(1)
		return io.NopCloser(bytes.NewReader(original)), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get("album-art", "u1/a.png", 50, open)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	path, err := cache.Get("album-art", "u1/a.png", 50, open)
	require.NoError(t, err)
	require.LessOrEqual(t, opens.Load(), int32(8))

	scaled, err := imaging.Open(path)
	require.NoError(t, err)
	require.Equal(t, 50, scaled.Bounds().Dx())
	require.Equal(t, 25, scaled.Bounds().Dy())

	before := opens.Load()
	_, err = cache.Get("album-art", "u1/a.png", 50, open)
	require.NoError(t, err)
	require.Equal(t, before, opens.Load())

	require.NoError(t, cache.Evict("album-art", "u1/a.png"))
	_, err = cache.Get("album-art", "u1/a.png", 50, open)
	require.NoError(t, err)
	require.Equal(t, before+1, opens.Load())
}

func TestGetConcurrentReaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache, err := imagecache.New(dir)
	require.NoError(t, err)

	original := testPNG(t, 600, 600)
	open := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(original)), nil
	}

	// whoever gets a path back must be able to read a whole image from it
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := cache.Get("album-art", "u1/big.png", 300, open)
			if !assert.NoError(t, err) {
				return
			}
			scaled, err := imaging.Open(path)
			if assert.NoError(t, err) {
				assert.Equal(t, 300, scaled.Bounds().Dx())
			}
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(cache.Path("album-art", "u1/big.png", 300)), entries[0].Name())
}

func TestGetNoUpscale(t *testing.T) {
	t.Parallel()

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	original := testPNG(t, 40, 40)
	path, err := cache.Get("album-art", "u1/small.png", 400, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(original)), nil
	})
	require.NoError(t, err)

	scaled, err := imaging.Open(path)
	require.NoError(t, err)
	require.Equal(t, 40, scaled.Bounds().Dx())
}

func TestGetInvalid(t *testing.T) {
	t.Parallel()

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	_, err = cache.Get("album-art", "u1/a.png", 1, nil)
	require.True(t, errors.Is(err, imagecache.ErrInvalidWidth))

	_, err = cache.Get("album-art", "u1/not-an-image", 64, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("hello"))), nil
	})
	require.Error(t, err)

	// nothing half written is left behind
	_, err = os.Stat(cache.Path("album-art", "u1/not-an-image", 64))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
