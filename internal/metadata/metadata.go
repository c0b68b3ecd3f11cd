// Package metadata turns noisy in-band stream metadata into tracks.
package metadata

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/glebovdev/radioplayer/internal/station"
)

// JunkSeparator marks the start of auxiliary text some streams append to the title.
const JunkSeparator = "|"

// ArtistTitleSeparator splits "Artist - Title".
const ArtistTitleSeparator = " - "

const minTitleOnlyLength = 3

var (
	digitRun   = regexp.MustCompile(`\d{6,}`)
	whitespace = regexp.MustCompile(`\s+`)

	sentinels = map[string]struct{}{
		"true":    {},
		"false":   {},
		"null":    {},
		"unknown": {},
		"n/a":     {},
		"-":       {},
		"":        {},
	}
)

// IsSentinel reports whether s is one of the values streams send instead of a title.
func IsSentinel(s string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Clean trims, drops trailing junk, strips numeric ids and collapses whitespace.
func Clean(raw string) string {
	s := stripJunk(raw)
	s = strings.TrimSpace(digitRun.ReplaceAllString(s, " "))
	return whitespace.ReplaceAllString(s, " ")
}

func stripJunk(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, JunkSeparator); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Parse returns the track described by raw, or false when raw carries no usable title
// and the previous track should be kept.
func Parse(raw string) (station.Track, bool) {
	cleaned := Clean(raw)
	if IsSentinel(cleaned) {
		return station.Track{}, false
	}

	parts := strings.Split(cleaned, ArtistTitleSeparator)
	if len(parts) >= 2 {
		artist := stripJunk(parts[0])
		title := stripJunk(parts[1])
		if artist == "" || title == "" || IsSentinel(artist) || IsSentinel(title) {
			return station.Track{}, false
		}
		return station.NewTrack(title, artist, ""), true
	}

	if utf8.RuneCountInString(cleaned) > minTitleOnlyLength {
		return station.NewTrack(cleaned, "", ""), true
	}
	return station.Track{}, false
}
