package services

import (
	"path/filepath"
	"testing"

	"scdl/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line     string
		ok       bool
		expected FetchProgress
	}{
		{"[download]  42.5% of 3.20MiB at 1.00MiB/s ETA 00:02", true, FetchProgress{Percent: 42.5, HasPercent: true}},
		{"[download] 100% of 3.20MiB in 00:03", true, FetchProgress{Percent: 100, HasPercent: true}},
		{"[download] Destination: /tmp/x/Night Drive/01 - Neon Lights.webm", true, FetchProgress{CurrentTrack: "01 - Neon Lights"}},
		{"[ExtractAudio] Destination: /tmp/x/Song.mp3", true, FetchProgress{CurrentTrack: "Converting: Song"}},
		{"[download] Downloading item 2 of 5", false, FetchProgress{}},
		{"[soundcloud] Extracting URL", false, FetchProgress{}},
		{"", false, FetchProgress{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p, ok := parseProgressLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestBuildArgsSingle(t *testing.T) {
	f := NewYtdlpFetcher("")
	assert.Equal(t, "yt-dlp", f.Binary)

	args := f.buildArgs(FetchJob{
		Mode:    types.ModeSingle,
		Format:  "mp3",
		Quality: "192",
		Dir:     "/data/abc",
	})

	assert.Contains(t, args, "--no-playlist")
	assert.NotContains(t, args, "--yes-playlist")
	assertFlag(t, args, "--audio-format", "mp3")
	assertFlag(t, args, "--audio-quality", "192K")
	assertFlag(t, args, "-o", filepath.Join("/data/abc", "%(title)s.%(ext)s"))
}

func TestBuildArgsPlaylist(t *testing.T) {
	f := NewYtdlpFetcher("yt-dlp")

	args := f.buildArgs(FetchJob{
		Mode:         types.ModePlaylist,
		Format:       "flac",
		Quality:      "best",
		Dir:          "/data/abc",
		CreateFolder: true,
		NumberTracks: true,
		TrackLimit:   5,
	})

	assert.Contains(t, args, "--yes-playlist")
	assertFlag(t, args, "--audio-quality", "0")
	assertFlag(t, args, "--playlist-items", "1-5")
	assertFlag(t, args, "-o", filepath.Join("/data/abc", "%(playlist_title)s", "%(playlist_index)s - %(title)s.%(ext)s"))

	flat := f.buildArgs(FetchJob{Mode: types.ModePlaylist, Format: "mp3", Quality: "320", Dir: "/d"})
	assert.NotContains(t, flat, "--playlist-items")
	assertFlag(t, flat, "-o", filepath.Join("/d", "%(title)s.%(ext)s"))
}

func assertFlag(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			require.Less(t, i+1, len(args), "flag %s has no value", flag)
			assert.Equal(t, value, args[i+1], flag)
			return
		}
	}
	t.Errorf("flag %s not found in %v", flag, args)
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"title":"Neon Lights","uploader":"Night Driver","duration":215.5,"thumbnail":"https://i1.sndcdn.com/x.jpg","_type":"video"}`))
	require.NoError(t, err)
	assert.Equal(t, "Neon Lights", info.Title)
	assert.Equal(t, "Night Driver", info.Artist)
	assert.Equal(t, 215.5, info.Duration)
	assert.False(t, info.IsPlaylist)

	info, err = parseProbe([]byte(`{"_type":"playlist","entries":[]}`))
	require.NoError(t, err)
	assert.True(t, info.IsPlaylist)
	assert.Equal(t, "SoundCloud track", info.Title)
	assert.Equal(t, "SoundCloud artist", info.Artist)

	_, err = parseProbe([]byte("not json"))
	assert.Error(t, err)
}
