// Package urlinfo validates SoundCloud links and derives display hints from
// their path. The hints are guesses made from URL text only; they are never
// metadata and are marked as such.
package urlinfo

import (
	"errors"
	"strings"
	"unicode"

	"scdl/types"
)

// DomainMarker is the substring every accepted link must contain
const DomainMarker = "soundcloud.com"

const setsMarker = "sets"

var (
	ErrMissingURL = errors.New("url is required")
	ErrInvalidURL = errors.New("url must be a SoundCloud link")
)

// Hint is an optimistic, presentation-only description of a link
type Hint struct {
	Mode   types.Mode
	Name   string
	Artist string
	// Authoritative is always false for hints built from URL text
	Authoritative bool
}

// Validate performs the only check done before a submission: the link
// must be non-empty and mention the service domain.
func Validate(raw string) error {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ErrMissingURL
	}
	if !strings.Contains(url, DomainMarker) {
		return ErrInvalidURL
	}
	return nil
}

// Classify returns ModePlaylist for set links and ModeSingle otherwise
func Classify(raw string) types.Mode {
	if strings.Contains(raw, "/"+setsMarker+"/") {
		return types.ModePlaylist
	}
	return types.ModeSingle
}

// Describe builds a display hint for the link
func Describe(raw string) Hint {
	parts := splitPath(raw)
	hint := Hint{
		Mode:   Classify(raw),
		Artist: segmentAfter(parts, DomainMarker, "SoundCloud Artist"),
	}

	if hint.Mode == types.ModePlaylist {
		hint.Name = segmentAfter(parts, setsMarker, "SoundCloud Playlist")
	} else if len(parts) > 0 {
		hint.Name = titleCase(parts[len(parts)-1])
	}

	return hint
}

// splitPath splits the link on "/" dropping empty segments. Query strings
// and fragments are cut off first so they never leak into names.
func splitPath(raw string) []string {
	url := strings.TrimSpace(raw)
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}

	var parts []string
	for _, p := range strings.Split(url, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func segmentAfter(parts []string, marker, fallback string) string {
	for i, p := range parts {
		if p == marker {
			if i+1 < len(parts) {
				return titleCase(parts[i+1])
			}
			break
		}
	}
	return fallback
}

// titleCase turns "my-set_name" into "My Set_name": dashes become spaces and
// every ASCII word character that starts a word is upper-cased.
func titleCase(segment string) string {
	s := strings.ReplaceAll(segment, "-", " ")

	var b strings.Builder
	b.Grow(len(s))
	prevWord := false
	for _, r := range s {
		word := isWordChar(r)
		if word && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = word
	}
	return b.String()
}

func isWordChar(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
