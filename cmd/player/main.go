// Package main provides the terminal player entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/app/coordinator"
	"github.com/flacterm/flacterm/internal/app/engine"
	"github.com/flacterm/flacterm/internal/app/lyricsrc"
	"github.com/flacterm/flacterm/internal/app/notify"
	"github.com/flacterm/flacterm/internal/app/playlist"
	"github.com/flacterm/flacterm/internal/app/queue"
	"github.com/flacterm/flacterm/internal/domain/media"
	"github.com/flacterm/flacterm/internal/domain/track"
	"github.com/flacterm/flacterm/internal/infra/beepout"
	"github.com/flacterm/flacterm/internal/infra/config"
	"github.com/flacterm/flacterm/internal/infra/logger"
)

var (
	app        = kingpin.New("flacterm", "flacterm terminal music player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to built-in defaults
// when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zlog.Info().Msgf("Config file %s not found, using defaults", path)
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := newBackend(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create media backend")
	}

	eng := engine.New(backend, engine.Config{
		PollInterval:         cfg.Playback.PollInterval(),
		LoadTimeout:          cfg.Playback.LoadTimeout(),
		DriftTolerance:       cfg.Playback.DriftTolerance(),
		PollFailureThreshold: cfg.Playback.PollFailureThreshold,
		Autoplay:             cfg.Playback.Autoplay == nil || *cfg.Playback.Autoplay,
		InitialVolume:        cfg.Playback.Volume,
	})
	defer eng.Close()

	var fetcher coordinator.LyricsFetcher
	if cfg.Lyrics.Enabled == nil || *cfg.Lyrics.Enabled {
		chain, err := lyricsrc.NewChainFromConfig(cfg)
		if err != nil {
			zlog.Warn().Msgf("Lyrics disabled: %v", err)
		} else {
			fetcher = chain
		}
	}

	queueMgr := queue.NewManager()
	playlistMgr := playlist.NewManager()
	coord := coordinator.New(eng, queueMgr, fetcher)

	broadcaster := notify.NewBroadcaster()
	go func() {
		for ev := range coord.Events() {
			broadcaster.Broadcast(ev)
		}
	}()

	subID, notifications := broadcaster.Subscribe(16)
	defer broadcaster.Unsubscribe(subID)
	go printNotifications(notifications)

	go coord.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zlog.Info().Msg("Received shutdown signal...")
		cancel()
		os.Stdin.Close()
	}()

	fmt.Println("flacterm ready. Type 'help' for commands.")
	commandLoop(ctx, eng, coord, queueMgr, playlistMgr)

	zlog.Info().Msg("Player stopped")
	return nil
}

// newBackend creates the configured media backend.
func newBackend(cfg *config.Config) (media.Backend, error) {
	switch cfg.Backend.Type {
	case "beep":
		return beepout.New(cfg.Backend.Settings)
	default:
		return nil, errors.Newf("unsupported backend type: %s", cfg.Backend.Type)
	}
}

// printNotifications renders broadcast events for the terminal.
func printNotifications(ch <-chan notify.Notification) {
	for n := range ch {
		ev := n.Event
		switch ev.Type {
		case coordinator.EventNowPlaying:
			if ev.Track != nil {
				fmt.Printf("\n>> now playing: %s\n", ev.Track.Display())
			}
		case coordinator.EventPlaybackFailed:
			fmt.Printf("\n>> playback failed: %v (use 'retry' or 'skip')\n", ev.Err)
		case coordinator.EventPlaybackFinished:
			fmt.Println("\n>> queue finished")
		}
	}
}

// commandLoop reads commands from stdin until quit or EOF.
func commandLoop(ctx context.Context, eng *engine.Engine, coord *coordinator.Coordinator, queueMgr *queue.Manager, playlistMgr *playlist.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		var err error
		switch cmd {
		case "play":
			err = cmdPlay(ctx, coord, args)
		case "add":
			err = cmdAdd(coord, args)
		case "pause", "toggle":
			err = coord.TogglePause()
		case "stop":
			err = eng.Stop()
		case "skip", "next":
			err = coord.Skip(ctx)
		case "retry":
			err = coord.Retry(ctx)
		case "seek":
			err = cmdSeek(eng, args)
		case "vol", "volume":
			err = cmdVolume(eng, args)
		case "repeat":
			err = cmdRepeat(eng, args)
		case "queue":
			printQueue(queueMgr)
		case "remove":
			err = cmdRemove(queueMgr, args)
		case "move":
			err = cmdMove(queueMgr, args)
		case "clear":
			coord.ClearQueue()
			fmt.Println("queue cleared")
		case "status":
			printStatus(eng)
		case "pl":
			err = cmdPlaylist(ctx, coord, playlistMgr, args)
		case "help":
			printHelp()
		case "quit", "exit", "q":
			return
		default:
			fmt.Printf("unknown command: %s (try 'help')\n", cmd)
		}

		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func cmdPlay(ctx context.Context, coord *coordinator.Coordinator, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: play <url> [title...]")
	}
	return coord.PlayNow(ctx, makeTrack(args))
}

func cmdAdd(coord *coordinator.Coordinator, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: add <url> [title...]")
	}
	id := coord.Enqueue(makeTrack(args))
	fmt.Printf("queued (entry %s)\n", id)
	return nil
}

func cmdSeek(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: seek <seconds | mm:ss>")
	}
	pos, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	return eng.Seek(pos)
}

func cmdVolume(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vol <0-100>")
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrap(err, "invalid volume")
	}
	eng.SetVolume(level)
	return nil
}

func cmdRepeat(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: repeat off|track|queue")
	}
	switch args[0] {
	case "off":
		eng.SetRepeatMode(engine.RepeatOff)
	case "track":
		eng.SetRepeatMode(engine.RepeatTrack)
	case "queue":
		eng.SetRepeatMode(engine.RepeatQueue)
	default:
		return errors.Newf("unknown repeat mode: %s", args[0])
	}
	fmt.Printf("repeat: %s\n", args[0])
	return nil
}

func cmdRemove(queueMgr *queue.Manager, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <entry-id>")
	}
	if !queueMgr.Remove(args[0]) {
		return errors.Newf("no queue entry with id %s", args[0])
	}
	fmt.Println("removed")
	return nil
}

func cmdMove(queueMgr *queue.Manager, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: move <entry-id> <position>")
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrap(err, "invalid position")
	}
	if !queueMgr.Move(args[0], pos-1) {
		return errors.Newf("no queue entry with id %s", args[0])
	}
	fmt.Println("moved")
	return nil
}

// cmdPlaylist dispatches playlist subcommands.
func cmdPlaylist(ctx context.Context, coord *coordinator.Coordinator, mgr *playlist.Manager, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pl list|show|create|delete|rename|add|remove|queue ...")
	}

	switch args[0] {
	case "list":
		names := mgr.ListPlaylists()
		if len(names) == 0 {
			fmt.Println("no playlists")
			return nil
		}
		for _, name := range names {
			tracks, _ := mgr.TracksIn(name)
			fmt.Printf("  %s (%d tracks)\n", name, len(tracks))
		}
		return nil
	case "show":
		if len(args) != 2 {
			return errors.New("usage: pl show <name>")
		}
		tracks, err := mgr.TracksIn(args[1])
		if err != nil {
			return err
		}
		for i, t := range tracks {
			fmt.Printf("  %2d. %s\n", i+1, t.Display())
		}
		return nil
	case "create":
		if len(args) != 2 {
			return errors.New("usage: pl create <name>")
		}
		return mgr.Create(args[1])
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: pl delete <name>")
		}
		return mgr.Delete(args[1])
	case "rename":
		if len(args) != 3 {
			return errors.New("usage: pl rename <old> <new>")
		}
		return mgr.Rename(args[1], args[2])
	case "add":
		if len(args) < 3 {
			return errors.New("usage: pl add <name> <url> [title...]")
		}
		mgr.AddToPlaylist(args[1], makeTrack(args[2:]))
		return nil
	case "remove":
		if len(args) != 3 {
			return errors.New("usage: pl remove <name> <track-id>")
		}
		return mgr.RemoveFromPlaylist(args[1], args[2])
	case "queue":
		if len(args) != 2 {
			return errors.New("usage: pl queue <name>")
		}
		tracks, err := mgr.TracksIn(args[1])
		if err != nil {
			return err
		}
		for _, t := range tracks {
			coord.Enqueue(t)
		}
		fmt.Printf("queued %d tracks\n", len(tracks))
		return nil
	default:
		return errors.Newf("unknown playlist command: %s", args[0])
	}
}

func printQueue(queueMgr *queue.Manager) {
	entries := queueMgr.Entries()
	if len(entries) == 0 {
		fmt.Println("queue is empty")
		return
	}
	for i, e := range entries {
		fmt.Printf("  %2d. %s [%s]\n", i+1, e.Track.Display(), e.ID)
	}
}

func printStatus(eng *engine.Engine) {
	snap := eng.Snapshot()

	fmt.Printf("state:  %s\n", snap.State)
	if snap.Track != nil {
		fmt.Printf("track:  %s\n", snap.Track.Display())
	}
	if snap.DurationKnown {
		fmt.Printf("pos:    %s / %s\n", formatPosition(snap.Position), formatPosition(snap.Duration))
	} else {
		fmt.Printf("pos:    %s\n", formatPosition(snap.Position))
	}
	fmt.Printf("volume: %d  repeat: %s\n", snap.Volume, snap.Repeat)
	if snap.CueText != "" {
		fmt.Printf("lyric:  %s\n", snap.CueText)
	}
	if snap.Err != nil {
		fmt.Printf("error:  %v\n", snap.Err)
	}
}

func printHelp() {
	fmt.Print(`commands:
  play <url> [title]   load and play a stream immediately
  add <url> [title]    append a stream to the queue
  pause | toggle       toggle pause
  stop                 stop playback (track stays loaded)
  skip                 play the next queued track
  retry                reload the current track after a failure
  seek <sec | mm:ss>   seek within the current track
  vol <0-100>          set volume
  repeat off|track|queue
  queue                list queued tracks
  remove <entry-id>    remove a queue entry
  move <entry-id> <n>  move a queue entry to position n
  clear                clear the queue
  status               show playback status
  pl <subcommand>      playlists (list, show, create, delete, rename, add, remove, queue)
  quit                 exit
`)
}

// makeTrack builds a track from "url [title words...]" arguments.
func makeTrack(args []string) track.Track {
	streamURL := args[0]
	title := strings.Join(args[1:], " ")
	if title == "" {
		title = titleFromURL(streamURL)
	}
	return track.Track{
		ID:        uuid.New().String(),
		Title:     title,
		StreamURL: streamURL,
	}
}

// titleFromURL falls back to the file name without its extension.
func titleFromURL(streamURL string) string {
	p := streamURL
	if u, err := url.Parse(streamURL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// parsePosition parses "90", "90.5" or "1:30" into a duration.
func parsePosition(s string) (time.Duration, error) {
	if m, rest, ok := strings.Cut(s, ":"); ok {
		minutes, err := strconv.Atoi(m)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid position %q", s)
		}
		seconds, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid position %q", s)
		}
		return time.Duration(minutes)*time.Minute + time.Duration(seconds*float64(time.Second)), nil
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid position %q", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func formatPosition(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
