package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var ErrMusicBrainz = errors.New("musicbrainz error")

const (
	BaseURL            = "https://musicbrainz.org/ws/2/"
	CoverArtArchiveURL = "https://coverartarchive.org/"

	DefaultLimit = 20

	requestTimeout = 10 * time.Second
)

type Client struct {
	httpClient *http.Client
	userAgent  string
	// https://musicbrainz.org/doc/MusicBrainz_API/Rate_Limiting
	limiter *rate.Limiter
	// the cover art archive is served by a separate host with looser limits
	coverLimiter *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient makes a client which identifies itself with userAgent. musicbrainz
// blocks clients without a meaningful user agent
func NewClient(userAgent string) *Client {
	return NewClientCustom(&http.Client{Timeout: requestTimeout}, userAgent)
}

func NewClientCustom(httpClient *http.Client, userAgent string) *Client {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "musicbrainz",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %q changed from %s to %s", name, from, to)
		},
	})
	return &Client{
		httpClient:   httpClient,
		userAgent:    userAgent,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		coverLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		breaker:      breaker,
	}
}

func (c *Client) SearchReleases(ctx context.Context, query string, limit int) (ReleaseList, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ReleaseList{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("fmt", "json")
	params.Add("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BaseURL+"release/", nil)
	if err != nil {
		return ReleaseList{}, fmt.Errorf("make request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := c.do(req)
	if err != nil {
		return ReleaseList{}, fmt.Errorf("search releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ReleaseList{}, fmt.Errorf("search releases: status %d: %w", resp.StatusCode, ErrMusicBrainz)
	}

	var list ReleaseList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return ReleaseList{}, fmt.Errorf("decoding: %w", err)
	}
	return list, nil
}

// FrontCover checks the cover art archive for a front cover of the release.
// ok is false when the archive has none
func (c *Client) FrontCover(ctx context.Context, mbid string) (coverURL string, ok bool, err error) {
	if err := c.coverLimiter.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("wait for rate limit: %w", err)
	}

	coverURL = CoverArtArchiveURL + "release/" + url.PathEscape(mbid) + "/front"

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, coverURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("make request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", false, fmt.Errorf("head front cover: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", false, nil
	}
	return coverURL, true, nil
}

// do sends the request through the circuit breaker. only transport errors and
// server errors count as failures
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrMusicBrainz)
		}
		return resp, nil
	})
}
