package lyricsrc

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/infra/config"
)

// NewChainFromConfig creates a lyrics provider chain from configuration.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	if len(cfg.Lyrics.Providers) == 0 {
		return nil, errors.New("no lyrics providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Lyrics.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("lyricsrc: creating provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "lrclib":
			provider, err = NewLRCLIBProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported lyrics provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create lyrics provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("lyricsrc: registered provider: index=%d type=%s display_name=%s",
			i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}
