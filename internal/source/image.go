package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ivlev/screenzoom/internal/system"
)

// ImageSource serves a still image, or a directory of images played as a
// sequence at FPS.
type ImageSource struct {
	paths []string
	fps   float64
	size  image.Point

	mu     sync.Mutex
	cached int
	img    image.Image
}

func isImagePath(path string) bool {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return true
	}
	return slices.Contains(system.ImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// NewImageSource opens a single image or a directory of images sorted by
// name. fps is ignored for a single image.
func NewImageSource(path string, fps float64) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if slices.Contains(system.ImageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", path)
	}

	f, err := os.Open(paths[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", paths[0], err)
	}

	return &ImageSource{
		paths:  paths,
		fps:    fps,
		size:   image.Pt(cfg.Width, cfg.Height),
		cached: -1,
	}, nil
}

// Len returns the number of images in the sequence.
func (s *ImageSource) Len() int {
	return len(s.paths)
}

// Size returns the size of the first image.
func (s *ImageSource) Size() image.Point {
	return s.size
}

// Frame returns the image shown at t. The sequence holds on its last image.
func (s *ImageSource) Frame(ctx context.Context, t float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := 0
	if len(s.paths) > 1 && s.fps > 0 {
		idx = min(max(0, int(math.Floor(t*s.fps))), len(s.paths)-1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx == s.cached {
		return s.img, nil
	}

	f, err := os.Open(s.paths[idx])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[idx], err)
	}
	s.cached, s.img = idx, img
	return img, nil
}

// Close releases the cached image.
func (s *ImageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached, s.img = -1, nil
	return nil
}
