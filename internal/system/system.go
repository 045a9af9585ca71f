package system

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

var (
	VideoExtensions     = []string{".mp4", ".mov", ".mkv", ".webm"}
	RecordingExtensions = []string{".yaml", ".yml", ".json"}
	ImageExtensions     = []string{".jpg", ".jpeg", ".png"}
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		Logger().Debug("open file limit raised", "limit", rLimit.Cur)
	}
}

// FindLatestFile returns the most recently modified file in dir whose
// extension is one of exts. If dir is a file, its directory is searched.
func FindLatestFile(dir string, exts []string) (string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		dir = filepath.Dir(dir)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов (%s)", dir, strings.Join(exts, ", "))
	}

	return latestFile, nil
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// VideoInfo is what ffprobe reports about the first video stream.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

// ProbeVideo reads stream geometry, frame rate and duration with ffprobe.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (VideoInfo, error) {
	var probe struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream")
	}

	s := probe.Streams[0]
	info := VideoInfo{Width: s.Width, Height: s.Height}
	info.FPS = parseRate(s.RFrameRate)
	if d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseRate parses ffprobe rates such as "30000/1001".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// DiskFree returns the free bytes on the filesystem holding path.
// A path that does not exist yet is resolved to its nearest existing parent.
func DiskFree(path string) (uint64, error) {
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", dir, err)
	}
	return usage.Free, nil
}

// CPUCount returns the number of logical cores, at least 1.
func CPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// GetBestEncoder picks a hardware encoder for codec ("h264" or "h265") when
// ffmpeg offers one, falling back to the software encoder.
func GetBestEncoder(codec string) string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264 / libx265)
	hw := []string{"h264_videotoolbox", "h264_nvenc"}
	software := "libx264"
	if codec == "h265" {
		hw = []string{"hevc_videotoolbox", "hevc_nvenc"}
		software = "libx265"
	}

	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return software
	}
	for _, name := range hw {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return software
}

func GetBestH264Encoder() string {
	return GetBestEncoder("h264")
}
