// Package beepout implements the media backend on top of faiface/beep.
package beepout

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/domain/media"
)

// ErrUnsupportedFormat is returned when the stream cannot be decoded.
var ErrUnsupportedFormat = errors.New("beepout: unsupported audio format")

// Config represents the beep backend configuration.
type Config struct {
	SampleRate        int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs          int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" default:"30" validate:"gte=1,lte=600"`
	ResampleQuality   int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// Backend plays audio through the host speaker. One speaker device is
// shared by all handles; each Load produces an independent control chain
// so a superseded handle can be stopped without touching its successor.
type Backend struct {
	config     *Config
	httpClient *http.Client
	initOnce   sync.Once
	initErr    error
}

// New creates a beep backend from raw settings.
func New(settings map[string]any) (*Backend, error) {
	config := &Config{}
	if err := mapstructure.Decode(settings, config); err != nil {
		return nil, errors.Wrap(err, "failed to decode beep backend settings")
	}
	if err := defaults.Set(config); err != nil {
		return nil, errors.Wrap(err, "failed to set beep backend defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "beep backend settings validation failed")
	}

	return &Backend{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSec) * time.Second,
		},
	}, nil
}

// Load fetches the stream, decodes it and wires it to the speaker,
// paused. The whole stream is buffered in memory so the decoder can
// seek; the speaker device is initialized on the first load.
func (b *Backend) Load(ctx context.Context, streamURL string) (media.Handle, error) {
	source, contentType, err := b.openSource(ctx, streamURL)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decode(streamURL, contentType, source)
	if err != nil {
		return nil, err
	}

	sr := beep.SampleRate(b.config.SampleRate)
	b.initOnce.Do(func() {
		b.initErr = speaker.Init(sr, sr.N(time.Duration(b.config.BufferMs)*time.Millisecond))
	})
	if b.initErr != nil {
		_ = streamer.Close()
		return nil, errors.Wrap(b.initErr, "failed to initialize speaker")
	}

	var chain beep.Streamer = streamer
	if format.SampleRate != sr {
		chain = beep.Resample(b.config.ResampleQuality, format.SampleRate, sr, streamer)
	}

	vol := &effects.Volume{Streamer: chain, Base: 2}
	ctrl := &beep.Ctrl{Streamer: vol, Paused: true}

	h := &handle{
		streamer: streamer,
		format:   format,
		ctrl:     ctrl,
		vol:      vol,
	}

	speaker.Play(beep.Seq(ctrl, beep.Callback(h.markEnded)))

	zlog.Debug().
		Str("url", streamURL).
		Int("source_rate", int(format.SampleRate)).
		Int("output_rate", b.config.SampleRate).
		Msg("stream loaded")

	return h, nil
}

// openSource resolves the stream URL to an in-memory seekable reader.
// Plain paths and file:// URLs read from disk, everything else goes
// over HTTP.
func (b *Backend) openSource(ctx context.Context, streamURL string) (io.ReadSeeker, string, error) {
	u, err := url.Parse(streamURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		p := streamURL
		if err == nil && u.Scheme == "file" {
			p = u.Path
		}
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			return nil, "", errors.Wrap(rerr, "failed to read audio file")
		}
		return bytes.NewReader(data), "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create stream request")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to fetch stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("unexpected stream status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to buffer stream")
	}

	return bytes.NewReader(data), resp.Header.Get("Content-Type"), nil
}

// decode picks a decoder from the URL extension, falling back to the
// HTTP content type.
func decode(streamURL, contentType string, source io.ReadSeeker) (beep.StreamSeekCloser, beep.Format, error) {
	switch sniffFormat(streamURL, contentType) {
	case "mp3":
		return mp3.Decode(readSeekCloser{source})
	case "flac":
		return flac.Decode(readSeekCloser{source})
	case "wav":
		return wav.Decode(readSeekCloser{source})
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "url %q content type %q", streamURL, contentType)
	}
}

// sniffFormat returns "mp3", "flac", "wav" or "".
func sniffFormat(streamURL, contentType string) string {
	ext := ""
	if u, err := url.Parse(streamURL); err == nil {
		ext = strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	}
	switch ext {
	case "mp3", "flac", "wav":
		return ext
	}

	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "mp3"
	case strings.Contains(contentType, "flac"):
		return "flac"
	case strings.Contains(contentType, "wav"), strings.Contains(contentType, "wave"):
		return "wav"
	}
	return ""
}

// readSeekCloser adapts an in-memory reader to the decoders' closer
// requirement.
type readSeekCloser struct {
	io.ReadSeeker
}

func (readSeekCloser) Close() error { return nil }

// handle controls one loaded stream. Streamer state is owned by the
// speaker goroutine, so every access goes through speaker.Lock.
type handle struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume

	mu      sync.Mutex
	stopped bool
	ended   bool
}

func (h *handle) markEnded() {
	h.mu.Lock()
	h.ended = true
	h.mu.Unlock()
}

func (h *handle) Play() error {
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (h *handle) Pause() error {
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Stop detaches this handle's chain from the speaker and releases the
// decoder. It never clears the whole speaker, so a handle loaded after
// this one keeps playing.
func (h *handle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	speaker.Lock()
	h.ctrl.Paused = true
	h.ctrl.Streamer = nil
	speaker.Unlock()

	return h.streamer.Close()
}

func (h *handle) Seek(pos time.Duration) error {
	n := h.format.SampleRate.N(pos)

	speaker.Lock()
	if max := h.streamer.Len() - 1; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	err := h.streamer.Seek(n)
	speaker.Unlock()

	if err != nil {
		return errors.Wrap(err, "seek failed")
	}
	return nil
}

func (h *handle) Position() (time.Duration, error) {
	speaker.Lock()
	p := h.streamer.Position()
	speaker.Unlock()
	return h.format.SampleRate.D(p), nil
}

func (h *handle) Duration() (time.Duration, error) {
	speaker.Lock()
	n := h.streamer.Len()
	speaker.Unlock()
	if n <= 0 {
		return 0, media.ErrPositionUnknown
	}
	return h.format.SampleRate.D(n), nil
}

// SetVolume maps the 0..100 level onto the volume effect's exponent.
// Level 100 is unity gain, each 25 levels halves the amplitude, and
// level 0 mutes outright.
func (h *handle) SetVolume(level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	speaker.Lock()
	h.vol.Silent = level == 0
	h.vol.Volume = volumeExponent(level)
	speaker.Unlock()
	return nil
}

func volumeExponent(level int) float64 {
	return float64(level-100) / 25.0
}

func (h *handle) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}
