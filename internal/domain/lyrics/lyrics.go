// Package lyrics provides the timed-lyrics domain entities and the LRC parser.
package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cue is a single timestamped lyric line.
type Cue struct {
	Timestamp time.Duration // Offset from track start
	Text      string        // Lyric text
}

// Track is an immutable parsed lyrics track: cues sorted by timestamp.
// Lookups assume the sort invariant established by ParseLRC.
type Track struct {
	cues []Cue
}

// NewTrack builds a lyrics track from cues, sorting them by timestamp.
func NewTrack(cues []Cue) *Track {
	sorted := make([]Cue, len(cues))
	copy(sorted, cues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return &Track{cues: sorted}
}

// Len returns the number of cues.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.cues)
}

// Cue returns the cue at index i.
func (t *Track) Cue(i int) Cue {
	return t.cues[i]
}

// Cues returns a copy of all cues in timestamp order.
func (t *Track) Cues() []Cue {
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}

// CueIndexAt returns the index of the active cue at position pos: the
// greatest cue whose timestamp <= pos. Returns -1 when pos precedes the
// first cue or the track has no cues. Binary search, O(log n).
func (t *Track) CueIndexAt(pos time.Duration) int {
	if t == nil || len(t.cues) == 0 {
		return -1
	}
	// First index whose timestamp is strictly after pos.
	i := sort.Search(len(t.cues), func(i int) bool {
		return t.cues[i].Timestamp > pos
	})
	return i - 1
}

// lrcLine matches "[mm:ss.xx]lyric text". Minutes may exceed two digits.
var lrcLine = regexp.MustCompile(`^\[(\d+):(\d+(?:\.\d+)?)\](.*)$`)

// ParseLRC parses an LRC payload into a lyrics track.
// Malformed lines are skipped rather than failing the whole parse; an
// input with no parsable cues yields an empty track, not an error.
// Seconds of 60 or more carry into the minutes, so "[01:75.00]" means
// 2m15s.
func ParseLRC(raw string) *Track {
	var cues []Cue
	for _, line := range strings.Split(raw, "\n") {
		m := lrcLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		min, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		sec, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		ts := time.Duration(min)*time.Minute + time.Duration(sec*float64(time.Second))
		cues = append(cues, Cue{Timestamp: ts, Text: strings.TrimSpace(m[3])})
	}
	return NewTrack(cues)
}
