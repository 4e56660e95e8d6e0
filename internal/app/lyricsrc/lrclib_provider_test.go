package lyricsrc

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flacterm/flacterm/internal/domain/track"
	"github.com/flacterm/flacterm/internal/infra/lrclib"
)

type stubClient struct {
	getResult     *lrclib.Lyrics
	getErr        error
	searchResults []lrclib.Lyrics
	searchErr     error
	searchCalls   int
}

func (s *stubClient) Get(_ context.Context, _, _, _ string, _ time.Duration) (*lrclib.Lyrics, error) {
	return s.getResult, s.getErr
}

func (s *stubClient) Search(_ context.Context, _, _ string) ([]lrclib.Lyrics, error) {
	s.searchCalls++
	return s.searchResults, s.searchErr
}

func newProvider(client LRCLIBClient, fallback bool) *LRCLIBProvider {
	return &LRCLIBProvider{
		client: client,
		config: &LRCLIBProviderConfig{SearchFallback: fallback},
	}
}

func TestLRCLIBProvider_Fetch_SyncedLyrics(t *testing.T) {
	client := &stubClient{
		getResult: &lrclib.Lyrics{SyncedLyrics: "[00:01.00]one\n[00:02.00]two"},
	}
	p := newProvider(client, false)

	lyr, err := p.Fetch(context.Background(), track.Track{Artist: "a", Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, lyr)
	assert.Equal(t, 2, lyr.Len())
}

func TestLRCLIBProvider_Fetch_MissWithoutFallback(t *testing.T) {
	client := &stubClient{getErr: lrclib.ErrNotFound}
	p := newProvider(client, false)

	lyr, err := p.Fetch(context.Background(), track.Track{Artist: "a", Title: "t"})
	require.NoError(t, err)
	assert.Nil(t, lyr)
	assert.Equal(t, 0, client.searchCalls)
}

func TestLRCLIBProvider_Fetch_SearchFallback(t *testing.T) {
	client := &stubClient{
		getErr: lrclib.ErrNotFound,
		searchResults: []lrclib.Lyrics{
			{SyncedLyrics: ""},
			{SyncedLyrics: "[00:05.00]found via search"},
		},
	}
	p := newProvider(client, true)

	lyr, err := p.Fetch(context.Background(), track.Track{Artist: "a", Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, lyr)
	assert.Equal(t, 1, lyr.Len())
	assert.Equal(t, 1, client.searchCalls)
}

func TestLRCLIBProvider_Fetch_TransportErrorPropagates(t *testing.T) {
	client := &stubClient{getErr: errors.New("connection refused")}
	p := newProvider(client, true)

	_, err := p.Fetch(context.Background(), track.Track{Artist: "a", Title: "t"})
	assert.Error(t, err)
}

func TestNewLRCLIBProvider_Settings(t *testing.T) {
	p, err := NewLRCLIBProvider(map[string]any{
		"base_url":        "https://example.test",
		"search_fallback": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", p.config.BaseURL)
	assert.True(t, p.config.SearchFallback)
	assert.Equal(t, "lrclib", p.Name())
}
