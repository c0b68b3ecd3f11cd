// Package station defines the station and track values shared by the playback engine.
package station

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Station is a named live-audio source. It is never mutated once constructed.
type Station struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Subtitle          string   `yaml:"subtitle" json:"subtitle"`
	StreamURL         string   `yaml:"stream_url" json:"streamURL"`
	ImageURL          string   `yaml:"image_url,omitempty" json:"imageURL,omitempty"`
	LogoURL           string   `yaml:"logo_url,omitempty" json:"logoURL,omitempty"`
	Categories        []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	UseStreamMetadata bool     `yaml:"use_stream_metadata" json:"useStreamMetadata"`
}

// Equal reports whether both stations share the same ID. Other fields are ignored.
func (s Station) Equal(other Station) bool {
	return s.ID == other.ID
}

// HasCategory reports whether the station is tagged with category (case-insensitive).
func (s Station) HasCategory(category string) bool {
	for _, c := range s.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// ArtworkURL returns the logo URL, falling back to the image URL.
func (s Station) ArtworkURL() string {
	if s.LogoURL != "" {
		return s.LogoURL
	}
	return s.ImageURL
}

// Validate checks the fields the engine relies on.
func (s Station) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("station id is empty")
	}
	u, err := url.Parse(s.StreamURL)
	if err != nil {
		return fmt.Errorf("station %s: invalid stream url: %w", s.ID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("station %s: stream url must be http(s), got %q", s.ID, s.StreamURL)
	}
	if u.Host == "" {
		return fmt.Errorf("station %s: stream url has no host", s.ID)
	}
	return nil
}

// Track is the unit currently believed to be playing. Tracks are superseded, never mutated.
type Track struct {
	ID     string
	Title  string
	Artist string
	Album  string
}

// NewTrack returns a track with a fresh identity.
func NewTrack(title, artist, album string) Track {
	return Track{
		ID:     uuid.NewString(),
		Title:  title,
		Artist: artist,
		Album:  album,
	}
}

// PlaceholderTrack is shown until real metadata arrives: the station subtitle as title
// and the station name as artist.
func PlaceholderTrack(s Station) Track {
	return NewTrack(s.Subtitle, s.Name, "")
}

// SameContent compares title, artist and album, ignoring identity.
func (t Track) SameContent(other Track) bool {
	return t.Title == other.Title && t.Artist == other.Artist && t.Album == other.Album
}

func (t Track) String() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.Artist
	}
}
