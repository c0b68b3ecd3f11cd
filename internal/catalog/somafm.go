package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/go-resty/resty/v2"
)

const (
	somaFMBaseURL  = "https://api.somafm.com"
	requestTimeout = 30 * time.Second
)

type somaPlaylist struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

type somaChannel struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Genre       string         `json:"genre"` // pipe-separated
	Image       string         `json:"image"`
	LargeImage  string         `json:"largeimage"`
	XLImage     string         `json:"xlimage"`
	Playlists   []somaPlaylist `json:"playlists"`
	Listeners   string         `json:"listeners"`
}

// bestPlaylistURL prefers the highest quality MP3 playlist, then any MP3, then the first one.
func (c somaChannel) bestPlaylistURL() string {
	var anyMP3 string
	for _, p := range c.Playlists {
		if p.Format != "mp3" {
			continue
		}
		if p.Quality == "highest" {
			return p.URL
		}
		if anyMP3 == "" {
			anyMP3 = p.URL
		}
	}
	if anyMP3 != "" {
		return anyMP3
	}
	if len(c.Playlists) > 0 {
		return c.Playlists[0].URL
	}
	return ""
}

func (c somaChannel) toStation() station.Station {
	var categories []string
	for _, g := range strings.Split(c.Genre, "|") {
		if g = strings.TrimSpace(g); g != "" {
			categories = append(categories, g)
		}
	}

	logo := c.XLImage
	if logo == "" {
		logo = c.LargeImage
	}

	return station.Station{
		ID:                c.ID,
		Name:              c.Title,
		Subtitle:          c.Description,
		StreamURL:         c.bestPlaylistURL(),
		ImageURL:          c.Image,
		LogoURL:           logo,
		Categories:        categories,
		UseStreamMetadata: true,
	}
}

func (c somaChannel) listeners() int {
	n, err := strconv.Atoi(c.Listeners)
	if err != nil {
		return -1
	}
	return n
}

// SomaFM maps the SomaFM channel directory to stations, most listened first.
type SomaFM struct {
	client *resty.Client
}

func NewSomaFM() *SomaFM {
	return newSomaFM(somaFMBaseURL)
}

func newSomaFM(baseURL string) *SomaFM {
	return &SomaFM{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", fmt.Sprintf("%s/%s", config.AppUserAgent, config.AppVersion)),
	}
}

func (s *SomaFM) Stations(ctx context.Context) ([]station.Station, error) {
	resp, err := s.client.R().SetContext(ctx).Get("/channels.json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Channels []somaChannel `json:"channels"`
	}

	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse stations response: %w", err)
	}

	channels := response.Channels
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].listeners() > channels[j].listeners()
	})

	stations := make([]station.Station, 0, len(channels))
	for _, ch := range channels {
		stations = append(stations, ch.toStation())
	}

	return filterValid(stations), nil
}
