package musicbrainz_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"go.senan.xyz/crate/musicbrainz"
	"go.senan.xyz/crate/musicbrainz/mockclient"
)

const testUserAgent = "crate-test/0.0.0 ( test@example.com )"

func TestSearchReleases(t *testing.T) {
	t.Parallel()

	client := musicbrainz.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "musicbrainz.org", r.Host)
			require.Equal(t, "/ws/2/release/", r.URL.Path)
			require.Equal(t, url.Values{
				"query": []string{"tago mago"},
				"fmt":   []string{"json"},
				"limit": []string{"20"},
			}, r.URL.Query())
			require.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
			require.Equal(t, "application/json", r.Header.Get("Accept"))

			w.WriteHeader(http.StatusOK)
			w.Write(mockclient.ReleaseSearchResponse)
		}),
		testUserAgent,
	)

	list, err := client.SearchReleases(context.Background(), "tago mago", musicbrainz.DefaultLimit)
	require.NoError(t, err)
	require.Equal(t, 412, list.Count)
	require.Len(t, list.Releases, 3)

	results := musicbrainz.SummariseList(list)
	require.Equal(t, []musicbrainz.SearchResult{
		{
			ID:      "8ae6c48a-1f5c-4a8f-9b0b-2d2f5bb0e3f1",
			Title:   "Tago Mago",
			Artist:  "Can",
			Year:    "1971",
			Type:    "Album",
			Label:   "United Artists Records",
			Barcode: "5016025311234",
			Format:  `2x12" Vinyl`,
		},
		{
			ID:     "b1a2c3d4-0000-4000-8000-000000000002",
			Title:  "Tago Mago (40th Anniversary)",
			Artist: "Can",
			Type:   "Compilation",
		},
		{
			ID:     "c1a2c3d4-0000-4000-8000-000000000004",
			Title:  "Untitled",
			Artist: musicbrainz.UnknownArtist,
		},
	}, results)

	require.True(t, musicbrainz.IsLikelyVinyl(results[0]))
	require.False(t, musicbrainz.IsLikelyVinyl(results[1]))
	require.True(t, musicbrainz.IsLikelyVinyl(results[2]))
}

func TestSearchReleasesRequestFails(t *testing.T) {
	t.Parallel()

	client := musicbrainz.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
		testUserAgent,
	)

	actual, err := client.SearchReleases(context.Background(), "tago mago", musicbrainz.DefaultLimit)
	require.Error(t, err)
	require.True(t, errors.Is(err, musicbrainz.ErrMusicBrainz))
	require.Zero(t, actual)
}

func TestSearchReleasesBadRequest(t *testing.T) {
	t.Parallel()

	client := musicbrainz.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}),
		testUserAgent,
	)

	_, err := client.SearchReleases(context.Background(), "(", musicbrainz.DefaultLimit)
	require.True(t, errors.Is(err, musicbrainz.ErrMusicBrainz))
}

func TestFrontCover(t *testing.T) {
	t.Parallel()

	client := musicbrainz.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodHead, r.Method)
			require.Equal(t, "coverartarchive.org", r.Host)
			require.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

			switch r.URL.Path {
			case "/release/has-cover/front":
				w.WriteHeader(http.StatusOK)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}),
		testUserAgent,
	)

	coverURL, ok, err := client.FrontCover(context.Background(), "has-cover")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://coverartarchive.org/release/has-cover/front", coverURL)

	coverURL, ok, err = client.FrontCover(context.Background(), "no-cover")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, coverURL)
}

func TestSearchReleasesContextCancelled(t *testing.T) {
	t.Parallel()

	client := musicbrainz.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(mockclient.ReleaseSearchResponse)
		}),
		testUserAgent,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SearchReleases(ctx, "tago mago", musicbrainz.DefaultLimit)
	require.Error(t, err)
}
