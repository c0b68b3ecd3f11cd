// Package cache keeps resolved artwork on disk, with a small in-memory front for the last few images.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long artwork stays valid on disk (7 days).
	DefaultExpiry = 7 * 24 * time.Hour
	// ArtworkSubdir is the subdirectory for cached artwork.
	ArtworkSubdir = "artwork"
	// AppDir is the cache directory name under the user cache root.
	AppDir = "radioplayer"
	// MemoryEntries bounds the in-memory front.
	MemoryEntries = 8
)

type memEntry struct {
	key string
	img image.Image
}

// ArtworkCache stores decoded artwork keyed by source URL.
type ArtworkCache struct {
	dir    string
	expiry time.Duration

	mu  sync.Mutex
	mem []memEntry
}

// New creates a cache rooted at dir. A zero expiry means DefaultExpiry.
func New(dir string, expiry time.Duration) *ArtworkCache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &ArtworkCache{
		dir:    filepath.Join(dir, ArtworkSubdir),
		expiry: expiry,
	}
}

// NewDefault creates a cache under the platform cache directory.
func NewDefault() (*ArtworkCache, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return New(dir, DefaultExpiry), nil
}

// Dir returns the platform-specific cache directory for the application.
func Dir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(userCacheDir, AppDir), nil
}

func keyFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}

func (c *ArtworkCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".png")
}

// Lookup returns the cached image for url. Expired disk entries are removed.
func (c *ArtworkCache) Lookup(url string) (image.Image, bool) {
	key := keyFor(url)

	if img, ok := c.fromMemory(key); ok {
		return img, true
	}

	path := c.pathFor(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if time.Since(info.ModTime()) > c.expiry {
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("file", path).Msg("Failed to remove expired artwork")
		}
		return nil, false
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("Failed to decode cached artwork")
		return nil, false
	}

	c.remember(key, img)
	return img, true
}

// Store writes img for url to memory and disk. The disk write is atomic.
func (c *ArtworkCache) Store(url string, img image.Image) error {
	key := keyFor(url)
	c.remember(key, img)

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".artwork-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artwork: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.pathFor(key)); err != nil {
		return fmt.Errorf("failed to move artwork into place: %w", err)
	}
	tmpPath = ""
	return nil
}

func (c *ArtworkCache) fromMemory(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.mem {
		if e.key == key {
			// move to front
			copy(c.mem[1:i+1], c.mem[:i])
			c.mem[0] = e
			return e.img, true
		}
	}
	return nil, false
}

func (c *ArtworkCache) remember(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.mem {
		if e.key == key {
			c.mem = append(c.mem[:i], c.mem[i+1:]...)
			break
		}
	}
	c.mem = append([]memEntry{{key: key, img: img}}, c.mem...)
	if len(c.mem) > MemoryEntries {
		c.mem = c.mem[:MemoryEntries]
	}
}

// Prune removes disk entries older than the expiry and returns how many were removed.
func (c *ArtworkCache) Prune() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to get file info")
			continue
		}

		if now.Sub(info.ModTime()) > c.expiry {
			path := filepath.Join(c.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Debug().Err(err).Str("file", path).Msg("Failed to remove expired artwork")
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Msg("Artwork cache pruned")
	}

	return removed, nil
}
