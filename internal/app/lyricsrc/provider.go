// Package lyricsrc provides timed-lyrics source strategies.
package lyricsrc

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/domain/lyrics"
	"github.com/flacterm/flacterm/internal/domain/track"
)

// Provider is the interface for lyrics providers. Different
// implementations can resolve lyrics through various sources.
type Provider interface {
	// Fetch resolves timed lyrics for a track. Returns (nil, nil) when
	// the source has nothing usable; errors are reserved for transport
	// or decoding failures.
	Fetch(ctx context.Context, t track.Track) (*lyrics.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// ProviderWithMetadata wraps a provider with its display metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries providers in order until one returns usable lyrics.
// Implements the coordinator's LyricsFetcher.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{providers: providers}
}

// Fetch resolves lyrics via the first provider that yields cues.
// A chain where every provider misses returns (nil, nil): playback
// proceeds without lyrics.
func (c *Chain) Fetch(ctx context.Context, t track.Track) (*lyrics.Track, error) {
	for i, pm := range c.providers {
		zlog.Debug().Msgf("lyricsrc: trying provider: index=%d total=%d name=%s",
			i+1, len(c.providers), pm.DisplayName)

		lyr, err := pm.Provider.Fetch(ctx, t)
		if err != nil {
			zlog.Warn().Msgf("lyricsrc: provider failed, trying next: provider=%s error=%v",
				pm.DisplayName, err)
			continue
		}
		if lyr == nil || lyr.Len() == 0 {
			zlog.Debug().Msgf("lyricsrc: provider returned no cues: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("lyricsrc: resolved lyrics: provider=%s cues=%d track=%s",
			pm.DisplayName, lyr.Len(), t.ID)
		return lyr, nil
	}
	return nil, nil
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "provider_chain"
}
