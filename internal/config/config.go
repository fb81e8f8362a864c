package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Supported generator providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
)

// Config holds all engine configuration.
type Config struct {
	Version   int             `toml:"version"`
	Engine    EngineConfig    `toml:"engine"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Generator GeneratorConfig `toml:"generator"`
	Storage   StorageConfig   `toml:"storage"`
}

type EngineConfig struct {
	TickMinutes      int     `toml:"tick_minutes"`
	MaxActiveStories int     `toml:"max_active_stories"`
	AdmissionRetries int     `toml:"admission_retries"`
	SimilarityWindow int     `toml:"similarity_window"`
	MaxPerCategory   int     `toml:"max_per_category"`
	TitleThreshold   float64 `toml:"title_threshold"`
	PrefixThreshold  float64 `toml:"prefix_threshold"`
	EvidenceStep     int     `toml:"evidence_step"`
	EpisodeLeaseMins int     `toml:"episode_lease_minutes"`
}

type LifecycleConfig struct {
	InactivityHours int `toml:"inactivity_hours"`
	MaxAgeHours     int `toml:"max_age_hours"`
}

type GeneratorConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"` // local provider only
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	DBPath   string `toml:"db_path"`
	MediaDir string `toml:"media_dir"`
}

// Default returns a Config with the reference deployment's defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			TickMinutes:      6,
			MaxActiveStories: 5,
			AdmissionRetries: 2,
			SimilarityWindow: 10,
			MaxPerCategory:   3,
			TitleThreshold:   0.6,
			PrefixThreshold:  0.4,
			EvidenceStep:     2,
			EpisodeLeaseMins: 10,
		},
		Lifecycle: LifecycleConfig{
			InactivityHours: 48,
			MaxAgeHours:     168,
		},
		Generator: GeneratorConfig{
			Provider:       ProviderLocal,
			Model:          "local-model",
			BaseURL:        "http://localhost:1234/v1",
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{},
	}
}

// Tick returns the scheduler tick interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Engine.TickMinutes) * time.Minute
}

// GeneratorTimeout returns the per-call generator timeout.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// EpisodeLease returns the evidence episode claim TTL.
func (c *Config) EpisodeLease() time.Duration {
	return time.Duration(c.Engine.EpisodeLeaseMins) * time.Minute
}

// InactivityWindow returns how long a story may go without comments
// before it is considered dormant.
func (c *Config) InactivityWindow() time.Duration {
	return time.Duration(c.Lifecycle.InactivityHours) * time.Hour
}

// MaxStoryAge returns the age at which an active story starts concluding.
func (c *Config) MaxStoryAge() time.Duration {
	return time.Duration(c.Lifecycle.MaxAgeHours) * time.Hour
}

// ConfigDir returns the platform-appropriate config directory.
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "urban-legends"), nil
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from disk and fills in derived defaults for any
// storage paths left empty.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.FillStorageDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// FillStorageDefaults derives db/media paths from the config dir when
// they are not set explicitly.
func (c *Config) FillStorageDefaults() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(dir, "legends.db")
	}
	if c.Storage.MediaDir == "" {
		c.Storage.MediaDir = filepath.Join(dir, "generated")
	}
	return nil
}
