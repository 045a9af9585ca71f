package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenzoom/internal/director"
	"github.com/ivlev/screenzoom/internal/engine"
)

// AnalyzerConfig selects the frame saliency pass used when generating a timeline.
type AnalyzerConfig struct {
	// Enabled refines zoom centers with detected content blocks
	Enabled bool `yaml:"enabled"`

	// Detector is the detector variant name (contrast, contrast-fine)
	Detector string `yaml:"detector"`
}

// Config holds the application configuration
type Config struct {
	// Director tunes the zoom, ripple, keystroke and cursor generators
	Director director.Settings `yaml:"director"`

	// Render holds the default export settings
	Render engine.RenderSettings `yaml:"render"`

	Analyzer AnalyzerConfig `yaml:"analyzer"`

	// Workers is the number of compose workers, 0 picks from the CPU count
	Workers int `yaml:"workers"`

	// HistoryDir holds history.db with past export runs
	HistoryDir string `yaml:"history_dir"`

	// ProjectsDir is where new projects are written when no path is given
	ProjectsDir string `yaml:"projects_dir"`

	// LogLevel is one of debug, info, warn, error. Empty disables logging.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Director: director.DefaultSettings(),
		Render:   engine.DefaultRenderSettings(),
		Analyzer: AnalyzerConfig{
			Detector: "contrast",
		},
		HistoryDir:  filepath.Join(home, ".screenzoom"),
		ProjectsDir: "projects",
	}
}

// Load reads the config from a YAML file over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDefaultPath loads the first config found in the current directory,
// ~/.config/screenzoom or XDG_CONFIG_HOME.
func LoadFromDefaultPath() (*Config, error) {
	paths := []string{
		"screenzoom.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "screenzoom", "config.yaml"),
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "screenzoom", "config.yaml"))
	}

	for _, path := range paths {
		if _, err := os.Stat(filepath.Clean(path)); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// ApplyEnv overlays SCREENZOOM_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SCREENZOOM_FPS"); v != "" {
		fps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SCREENZOOM_FPS: %w", err)
		}
		c.Render.FPS = fps
	}
	if v := os.Getenv("SCREENZOOM_QUALITY"); v != "" {
		c.Render.Quality = engine.Quality(strings.ToLower(v))
	}
	if v := os.Getenv("SCREENZOOM_CODEC"); v != "" {
		c.Render.Codec = engine.Codec(strings.ToLower(v))
	}
	if v := os.Getenv("SCREENZOOM_ENCODER"); v != "" {
		c.Render.Encoder = v
	}
	if v := os.Getenv("SCREENZOOM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCREENZOOM_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("SCREENZOOM_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCREENZOOM_DEBUG: %w", err)
		}
		c.Render.Debug = debug
	}
	if v := os.Getenv("SCREENZOOM_HISTORY_DIR"); v != "" {
		c.HistoryDir = v
	}
	if v := os.Getenv("SCREENZOOM_PROJECTS_DIR"); v != "" {
		c.ProjectsDir = v
	}
	if v := os.Getenv("SCREENZOOM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the generator settings and the render defaults that do
// not depend on an output path.
func (c *Config) Validate() error {
	if err := c.Director.Validate(); err != nil {
		return fmt.Errorf("director: %w", err)
	}
	render := c.Render
	if render.Output == "" {
		render.Output = "out.mp4"
	}
	if err := render.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if _, _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name to slog. ok is false for the empty name,
// which means logging stays off.
func ParseLogLevel(name string) (level slog.Level, ok bool, err error) {
	switch strings.ToLower(name) {
	case "":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	}
	return 0, false, fmt.Errorf("unknown log level %q", name)
}
