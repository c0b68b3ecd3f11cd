// Package artwork looks up album artwork for a track and downloads images.
package artwork

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/glebovdev/radioplayer/internal/cache"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSearchURL = "https://itunes.apple.com/search"
	requestTimeout   = 15 * time.Second
	thumbSize        = "100x100bb"
	fullSize         = "600x600bb"
)

// ErrNoArtwork is returned when a search yields no usable artwork URL.
var ErrNoArtwork = errors.New("no artwork found")

// Client searches an iTunes-compatible endpoint and fetches images, consulting the cache first.
type Client struct {
	client    *resty.Client
	searchURL string
	cache     *cache.ArtworkCache
}

// NewClient creates a Client. An empty searchURL uses DefaultSearchURL; a nil cache disables caching.
func NewClient(searchURL string, c *cache.ArtworkCache) *Client {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return &Client{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", fmt.Sprintf("%s/%s", config.AppUserAgent, config.AppVersion)),
		searchURL: searchURL,
		cache:     c,
	}
}

type searchResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
	ArtistName    string `json:"artistName"`
	TrackName     string `json:"trackName"`
}

type searchResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []searchResult `json:"results"`
}

// SearchArtwork returns a large artwork URL for the first song matching "artist title".
func (c *Client) SearchArtwork(ctx context.Context, artist, title string) (string, error) {
	term := strings.TrimSpace(artist + " " + title)
	if term == "" {
		return "", ErrNoArtwork
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"term":   term,
			"media":  "music",
			"entity": "song",
			"limit":  "1",
		}).
		Get(c.searchURL)
	if err != nil {
		return "", fmt.Errorf("failed to search artwork: %w", err)
	}

	if !resp.IsSuccess() {
		return "", fmt.Errorf("artwork search returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response searchResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return "", fmt.Errorf("failed to parse artwork response: %w", err)
	}

	for _, r := range response.Results {
		if r.ArtworkURL100 != "" {
			return upscale(r.ArtworkURL100), nil
		}
	}
	return "", ErrNoArtwork
}

func upscale(url string) string {
	return strings.Replace(url, thumbSize, fullSize, 1)
}

// FetchImage downloads and decodes a JPEG or PNG image.
func (c *Client) FetchImage(ctx context.Context, url string) (image.Image, error) {
	if c.cache != nil {
		if img, ok := c.cache.Lookup(url); ok {
			log.Debug().Str("url", url).Msg("Artwork loaded from cache")
			return img, nil
		}
	}

	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("image request returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	img, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Store(url, img); err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Failed to cache artwork")
		}
	}

	return img, nil
}
