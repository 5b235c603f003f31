// Package config provides YAML-based configuration for the review client.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	// Backend configuration
	Backend BackendConfig `yaml:"backend"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Review configuration
	Review ReviewConfig `yaml:"review"`
}

// BackendConfig contains audit-backend connection settings.
type BackendConfig struct {
	URL            string `yaml:"url"`
	SessionID      string `yaml:"session_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// StorageConfig contains local file settings.
type StorageConfig struct {
	CacheDirectory    string `yaml:"cache_directory"`
	DownloadDirectory string `yaml:"download_directory"`
}

// ReviewConfig contains review-session behavior settings.
type ReviewConfig struct {
	ConfirmBatchConvert bool `yaml:"confirm_batch_convert"`
	MaxFitZoom          int  `yaml:"max_fit_zoom"`
	PointZoom           int  `yaml:"point_zoom"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			URL:            "http://localhost:5000",
			SessionID:      "",
			TimeoutSeconds: 30,
			PollIntervalMS: 2000,
		},
		Storage: StorageConfig{
			CacheDirectory:    "./cache",
			DownloadDirectory: "./downloads",
		},
		Review: ReviewConfig{
			ConfirmBatchConvert: true,
			MaxFitZoom:          16,
			PointZoom:           16,
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating the default on
// first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# GIS audit review client configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if url := os.Getenv("REVIEWER_BACKEND_URL"); url != "" {
		c.Backend.URL = url
	}
	if id := os.Getenv("REVIEWER_SESSION_ID"); id != "" {
		c.Backend.SessionID = id
	}
	if dir := os.Getenv("REVIEWER_CACHE_DIR"); dir != "" {
		c.Storage.CacheDirectory = dir
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.CacheDirectory) {
		c.Storage.CacheDirectory = filepath.Join(configDir, c.Storage.CacheDirectory)
	}
	if !filepath.IsAbs(c.Storage.DownloadDirectory) {
		c.Storage.DownloadDirectory = filepath.Join(configDir, c.Storage.DownloadDirectory)
	}
}

// EnsureDirectories creates the cache and download directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.CacheDirectory,
		c.Storage.DownloadDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
