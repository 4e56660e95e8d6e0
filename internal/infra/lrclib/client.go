// Package lrclib provides a client for the LRCLIB lyrics API.
package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned when LRCLIB has no lyrics for the track.
var ErrNotFound = errors.New("lrclib: lyrics not found")

// Lyrics represents one LRCLIB record.
type Lyrics struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"` // seconds
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// Config represents LRCLIB client configuration.
type Config struct {
	BaseURL   string
	UserAgent string
}

// Client is an LRCLIB API client with an in-memory result cache.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client

	cache   map[string]*Lyrics
	cacheMu sync.RWMutex
}

// New creates a new LRCLIB client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://lrclib.net"
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "flacterm/1.0.0"
	}
	return &Client{
		baseURL:    base,
		userAgent:  ua,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]*Lyrics),
	}
}

// Get retrieves the lyrics record matching the exact track signature.
// Reference: https://lrclib.net/docs (GET /api/get)
func (c *Client) Get(ctx context.Context, artist, title, album string, duration time.Duration) (*Lyrics, error) {
	if artist == "" || title == "" {
		return nil, errors.New("artist and title are required")
	}

	cacheKey := fmt.Sprintf("get|%s|%s|%s|%d", artist, title, album, int(duration.Seconds()))
	if cached := c.fromCache(cacheKey); cached != nil {
		return cached, nil
	}

	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)
	if album != "" {
		params.Set("album_name", album)
	}
	if duration > 0 {
		params.Set("duration", strconv.Itoa(int(duration.Seconds())))
	}

	var result Lyrics
	if err := c.doJSON(ctx, "/api/get", params, &result); err != nil {
		return nil, err
	}

	c.toCache(cacheKey, &result)
	return &result, nil
}

// Search searches LRCLIB by track and artist name. Used as a fallback
// when the exact signature lookup misses.
// Reference: https://lrclib.net/docs (GET /api/search)
func (c *Client) Search(ctx context.Context, artist, title string) ([]Lyrics, error) {
	if title == "" {
		return nil, errors.New("title is required")
	}

	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}

	var results []Lyrics
	if err := c.doJSON(ctx, "/api/search", params, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s - %s", artist, title)
	}
	return results, nil
}

// doJSON performs a GET request and decodes the JSON response.
func (c *Client) doJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "lrclib request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		zlog.Debug().Msgf("lrclib: unexpected status %d: %s", resp.StatusCode, string(body))
		return errors.Newf("lrclib returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode lrclib response")
	}
	return nil
}

func (c *Client) fromCache(key string) *Lyrics {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.cache[key]
}

func (c *Client) toCache(key string, l *Lyrics) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = l
}
