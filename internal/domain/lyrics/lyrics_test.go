package lyrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLRC(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []Cue
	}{
		{
			name: "well-formed payload",
			raw:  "[00:12.50]Line one\n[00:24.00]Line two\n[01:02.30]Line three",
			expected: []Cue{
				{Timestamp: 12*time.Second + 500*time.Millisecond, Text: "Line one"},
				{Timestamp: 24 * time.Second, Text: "Line two"},
				{Timestamp: time.Minute + 2*time.Second + 300*time.Millisecond, Text: "Line three"},
			},
		},
		{
			name: "malformed lines are skipped",
			raw:  "garbage\n[00:05.00]Good line\n[xx:yy.zz]bad\n[99]also bad",
			expected: []Cue{
				{Timestamp: 5 * time.Second, Text: "Good line"},
			},
		},
		{
			name: "out of order input is sorted",
			raw:  "[00:30.00]Second\n[00:10.00]First",
			expected: []Cue{
				{Timestamp: 10 * time.Second, Text: "First"},
				{Timestamp: 30 * time.Second, Text: "Second"},
			},
		},
		{
			name: "overflowing seconds carry into minutes",
			raw:  "[01:60.00]Carry\n[00:75.50]Fraction",
			expected: []Cue{
				{Timestamp: time.Minute + 15*time.Second + 500*time.Millisecond, Text: "Fraction"},
				{Timestamp: 2 * time.Minute, Text: "Carry"},
			},
		},
		{
			name: "crlf line endings",
			raw:  "[00:01.00]One\r\n[00:02.00]Two\r\n",
			expected: []Cue{
				{Timestamp: 1 * time.Second, Text: "One"},
				{Timestamp: 2 * time.Second, Text: "Two"},
			},
		},
		{
			name:     "no parsable cues yields empty track",
			raw:      "plain lyrics without timestamps\nmore text",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk := ParseLRC(tt.raw)
			require.NotNil(t, trk)
			assert.Equal(t, len(tt.expected), trk.Len())
			for i, want := range tt.expected {
				assert.Equal(t, want, trk.Cue(i))
			}
		})
	}
}

func TestTrack_CueIndexAt(t *testing.T) {
	trk := NewTrack([]Cue{
		{Timestamp: 0, Text: "a"},
		{Timestamp: 10 * time.Second, Text: "b"},
		{Timestamp: 20 * time.Second, Text: "c"},
	})

	tests := []struct {
		name     string
		pos      time.Duration
		expected int
	}{
		{name: "before first cue of non-zero track", pos: -1 * time.Second, expected: -1},
		{name: "exactly at first cue", pos: 0, expected: 0},
		{name: "just before second cue", pos: 9*time.Second + 900*time.Millisecond, expected: 0},
		{name: "exactly at second cue", pos: 10 * time.Second, expected: 1},
		{name: "past last cue", pos: 25 * time.Second, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trk.CueIndexAt(tt.pos))
			// Idempotent: same position, same cue.
			assert.Equal(t, tt.expected, trk.CueIndexAt(tt.pos))
		})
	}
}

func TestTrack_CueIndexAt_Empty(t *testing.T) {
	assert.Equal(t, -1, NewTrack(nil).CueIndexAt(5*time.Second))

	var nilTrack *Track
	assert.Equal(t, -1, nilTrack.CueIndexAt(5*time.Second))
}
