package segment

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
)

// SceneDetector finds timestamps where visual content changes abruptly
// beyond a threshold, over [start, end) of the video (end <= 0 means the
// whole video). Failure is fatal for the whole call.
type SceneDetector interface {
	DetectScenes(ctx context.Context, path string, start, end, threshold float64) ([]float64, error)
}

// FFmpegDetector runs ffmpeg's scene-change filter as a subprocess and
// parses frame timestamps from the showinfo output.
type FFmpegDetector struct {
	ffmpegPath string
}

func NewFFmpegDetector() (*FFmpegDetector, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &FFmpegDetector{ffmpegPath: ffmpegPath}, nil
}

var ptsTimeRe = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

func (d *FFmpegDetector) DetectScenes(ctx context.Context, path string, start, end, threshold float64) ([]float64, error) {
	filter := fmt.Sprintf("select='gt(scene,%f)',showinfo", threshold)
	if end > start && end > 0 {
		// between() keeps showinfo timestamps absolute, unlike an input -ss.
		filter = fmt.Sprintf("select='between(t,%f,%f)*gt(scene,%f)',showinfo", start, end, threshold)
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", path,
		"-vf", filter,
		"-f", "null",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("scene detection failed: %w (output: %.500s)", err, stderr.String())
	}

	var timestamps []float64
	for _, match := range ptsTimeRe.FindAllStringSubmatch(stderr.String(), -1) {
		ts, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	sort.Float64s(timestamps)
	return timestamps, nil
}
