package lyricsrc

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/flacterm/flacterm/internal/domain/lyrics"
	"github.com/flacterm/flacterm/internal/domain/track"
	"github.com/flacterm/flacterm/internal/infra/lrclib"
)

// LRCLIBClient defines the LRCLIB operations the provider needs.
type LRCLIBClient interface {
	Get(ctx context.Context, artist, title, album string, duration time.Duration) (*lrclib.Lyrics, error)
	Search(ctx context.Context, artist, title string) ([]lrclib.Lyrics, error)
}

// LRCLIBProviderConfig holds provider settings.
type LRCLIBProviderConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url" default:"https://lrclib.net"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent" default:"flacterm/1.0.0"`
	SearchFallback bool   `yaml:"search_fallback" mapstructure:"search_fallback"`
}

// LRCLIBProvider resolves synced lyrics from LRCLIB: an exact signature
// lookup first, then (optionally) a metadata search.
type LRCLIBProvider struct {
	client LRCLIBClient
	config *LRCLIBProviderConfig
}

// NewLRCLIBProvider creates an LRCLIBProvider from a settings map.
func NewLRCLIBProvider(settings map[string]any) (*LRCLIBProvider, error) {
	var config LRCLIBProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client := lrclib.New(lrclib.Config{
		BaseURL:   config.BaseURL,
		UserAgent: config.UserAgent,
	})

	return &LRCLIBProvider{client: client, config: &config}, nil
}

// Fetch resolves synced lyrics for the track.
func (p *LRCLIBProvider) Fetch(ctx context.Context, t track.Track) (*lyrics.Track, error) {
	rec, err := p.client.Get(ctx, t.Artist, t.Title, t.Album, t.Duration)
	if err == nil && rec.SyncedLyrics != "" {
		return lyrics.ParseLRC(rec.SyncedLyrics), nil
	}
	if err != nil && !errors.Is(err, lrclib.ErrNotFound) {
		return nil, err
	}

	if !p.config.SearchFallback {
		return nil, nil
	}

	results, err := p.client.Search(ctx, t.Artist, t.Title)
	if err != nil {
		if errors.Is(err, lrclib.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	for _, r := range results {
		if r.SyncedLyrics != "" {
			return lyrics.ParseLRC(r.SyncedLyrics), nil
		}
	}
	return nil, nil
}

// Name returns the provider name.
func (p *LRCLIBProvider) Name() string {
	return "lrclib"
}
