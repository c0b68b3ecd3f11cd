package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "Radio Player"
	AppTagline     = "Terminal internet radio"
	AppDescription = "A terminal internet-radio player with live stream metadata"
	AppUserAgent   = "RadioPlayer"
	AppProjectURL  = "https://github.com/glebovdev/radioplayer"

	ConfigDir      = ".config/radioplayer"
	ConfigFileName = "config.yml"
	ConfigPathEnv  = "RADIOPLAYER_CONFIG"
	EnvFileName    = ".env"

	DefaultVolume = 70
	MinVolume     = 0
	MaxVolume     = 100

	MinForwardBuffer = 10 * time.Second
	MaxForwardBuffer = 20 * time.Second
)

// ClampVolume ensures volume is within the valid range [0, 100].
func ClampVolume(volume int) int {
	if volume < MinVolume {
		return MinVolume
	}
	if volume > MaxVolume {
		return MaxVolume
	}
	return volume
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/radioplayer/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Theme struct {
	Background       string `yaml:"background"`
	Foreground       string `yaml:"foreground"`
	Borders          string `yaml:"borders"`
	Highlight        string `yaml:"highlight"`
	MutedVolume      string `yaml:"muted_volume"`
	HeaderBackground string `yaml:"header_background"`
	ErrorForeground  string `yaml:"error_foreground"`
}

// Playback holds the engine tunables. Durations accept Go syntax ("15s", "500ms").
type Playback struct {
	ForwardBuffer          time.Duration `yaml:"forward_buffer"`
	StallRetryDelay        time.Duration `yaml:"stall_retry_delay"`
	FailureRetryDelay      time.Duration `yaml:"failure_retry_delay"`
	MaxLoadRetries         int           `yaml:"max_load_retries"`
	HealthCheckInterval    time.Duration `yaml:"health_check_interval"`
	StopReleaseDelay       time.Duration `yaml:"stop_release_delay"`
	PauseReleaseDelay      time.Duration `yaml:"pause_release_delay"`
	ForegroundRestartDelay time.Duration `yaml:"foreground_restart_delay"`
}

type Audio struct {
	SampleRate       int           `yaml:"sample_rate"`
	IOBufferDuration time.Duration `yaml:"io_buffer"`
}

type Artwork struct {
	Enabled   bool   `yaml:"enabled"`
	SearchURL string `yaml:"search_url"`
}

type Catalog struct {
	SomaFM bool `yaml:"somafm"`
}

type Background struct {
	// Budget bounds each background grant; zero means unbounded.
	Budget time.Duration `yaml:"budget"`
}

type Config struct {
	Volume      int               `yaml:"volume"`
	LastStation string            `yaml:"last_station"`
	Autostart   bool              `yaml:"autostart"`
	Stations    []station.Station `yaml:"stations"`
	Catalog     Catalog           `yaml:"catalog"`
	Playback    Playback          `yaml:"playback"`
	Audio       Audio             `yaml:"audio"`
	Artwork     Artwork           `yaml:"artwork"`
	Background  Background        `yaml:"background"`
	Theme       Theme             `yaml:"theme"`
}

// LoadEnv reads a .env file from the working directory, then from the config directory.
// Variables already set in the environment win. Missing files are not an error.
func LoadEnv() error {
	var errs []error
	candidates := []string{EnvFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ConfigDir, EnvFileName))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to load %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func GetConfigPath() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return filepath.Abs(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()

	return cfg, nil
}

// Normalize clamps values and fills zero tunables with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()

	c.Volume = ClampVolume(c.Volume)

	p := &c.Playback
	switch {
	case p.ForwardBuffer == 0:
		p.ForwardBuffer = def.Playback.ForwardBuffer
	case p.ForwardBuffer < MinForwardBuffer:
		p.ForwardBuffer = MinForwardBuffer
	case p.ForwardBuffer > MaxForwardBuffer:
		p.ForwardBuffer = MaxForwardBuffer
	}
	defaultDuration(&p.StallRetryDelay, def.Playback.StallRetryDelay)
	defaultDuration(&p.FailureRetryDelay, def.Playback.FailureRetryDelay)
	defaultDuration(&p.HealthCheckInterval, def.Playback.HealthCheckInterval)
	defaultDuration(&p.StopReleaseDelay, def.Playback.StopReleaseDelay)
	defaultDuration(&p.PauseReleaseDelay, def.Playback.PauseReleaseDelay)
	defaultDuration(&p.ForegroundRestartDelay, def.Playback.ForegroundRestartDelay)
	if p.MaxLoadRetries <= 0 {
		p.MaxLoadRetries = def.Playback.MaxLoadRetries
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	defaultDuration(&c.Audio.IOBufferDuration, def.Audio.IOBufferDuration)

	if c.Artwork.SearchURL == "" {
		c.Artwork.SearchURL = def.Artwork.SearchURL
	}
	if c.Background.Budget < 0 {
		c.Background.Budget = 0
	}

	valid := c.Stations[:0]
	for _, st := range c.Stations {
		if st.Validate() == nil {
			valid = append(valid, st)
		}
	}
	c.Stations = valid
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Volume:      DefaultVolume,
		LastStation: "",
		Autostart:   false,
		Stations:    []station.Station{},
		Catalog:     Catalog{SomaFM: true},
		Playback: Playback{
			ForwardBuffer:          15 * time.Second,
			StallRetryDelay:        3 * time.Second,
			FailureRetryDelay:      5 * time.Second,
			MaxLoadRetries:         3,
			HealthCheckInterval:    10 * time.Second,
			StopReleaseDelay:       1 * time.Second,
			PauseReleaseDelay:      5 * time.Second,
			ForegroundRestartDelay: 1 * time.Second,
		},
		Audio: Audio{
			SampleRate:       44100,
			IOBufferDuration: 250 * time.Millisecond,
		},
		Artwork: Artwork{
			Enabled:   true,
			SearchURL: "https://itunes.apple.com/search",
		},
		Theme: Theme{
			Background:       "#1a1b25",
			Foreground:       "#a3aacb",
			Borders:          "#40445b",
			Highlight:        "#ff9d65",
			MutedVolume:      "#fe0702",
			HeaderBackground: "#473533",
			ErrorForeground:  "#ff5f5f",
		},
	}
}

// FindStation returns the configured station with the given ID.
func (c *Config) FindStation(id string) (station.Station, bool) {
	for _, st := range c.Stations {
		if st.ID == id {
			return st, true
		}
	}
	return station.Station{}, false
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
