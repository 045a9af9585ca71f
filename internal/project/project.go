// Package project stores a recording's media references, its timeline and
// its export settings in one YAML file.
package project

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenzoom/internal/engine"
	zerr "github.com/ivlev/screenzoom/internal/errors"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// Version is the project file schema version.
const Version = 1

// Media describes the recorded video and its activity capture.
type Media struct {
	VideoPath     string  `yaml:"video_path"`
	RecordingPath string  `yaml:"recording_path"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FPS           float64 `yaml:"fps"`
	Duration      float64 `yaml:"duration"`
}

// Project is one editable screen recording.
type Project struct {
	ID         string                `yaml:"id"`
	Version    int                   `yaml:"version"`
	Name       string                `yaml:"name"`
	CreatedAt  time.Time             `yaml:"created_at"`
	ModifiedAt time.Time             `yaml:"modified_at"`
	Media      Media                 `yaml:"media"`
	Timeline   timeline.Timeline     `yaml:"timeline"`
	Render     engine.RenderSettings `yaml:"render"`
}

// NewProject creates a project with a fresh ULID.
func NewProject(name string, media Media, tl timeline.Timeline, render engine.RenderSettings) (*Project, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	return &Project{
		ID:         id.String(),
		Version:    Version,
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		Media:      media,
		Timeline:   tl,
		Render:     render,
	}, nil
}

// Save writes the project atomically: a temp file in the same directory is
// renamed over path.
func (p *Project) Save(path string) error {
	p.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".project-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a project file. A malformed timeline is a CORRUPT_DOCUMENT error.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		e := zerr.NewCorruptDocument(fmt.Sprintf("project %s: %v", path, err))
		e.Err = err
		return nil, e
	}
	if p.Version > Version {
		return nil, zerr.NewCorruptDocument(fmt.Sprintf("project %s has unsupported version %d", path, p.Version))
	}
	if p.ID == "" {
		return nil, zerr.NewCorruptDocument(fmt.Sprintf("project %s has no id", path))
	}
	return &p, nil
}

// GenerateProjectPath creates a timestamped project filename in dir
func GenerateProjectPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("project_%s.yaml", timestamp))
}

// FindLatestProject finds the most recently modified project file in dir
func FindLatestProject(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read projects directory: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "project_") && strings.HasSuffix(entry.Name(), ".yaml") {
			projects = append(projects, filepath.Join(dir, entry.Name()))
		}
	}

	if len(projects) == 0 {
		return "", fmt.Errorf("no project files found in %s", dir)
	}

	// Sort by modification time (newest first)
	sort.Slice(projects, func(i, j int) bool {
		infoI, _ := os.Stat(projects[i])
		infoJ, _ := os.Stat(projects[j])
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return projects[0], nil
}
