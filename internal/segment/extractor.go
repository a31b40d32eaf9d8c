package segment

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FrameExtractor extracts one still image per timestamp. A failure concerns
// that timestamp only.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, path string, timestamp float64) ([]byte, error)
}

// VideoProber reports the duration of a video in seconds.
type VideoProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpegExtractor extracts single frames via ffmpeg and probes duration via
// ffprobe. Extracted frames are re-encoded as JPEG, scaled and padded to a
// square of FrameSize pixels.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	frameSize   int
}

const defaultFrameSize = 512

func NewFFmpegExtractor(frameSize int) (*FFmpegExtractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "stepshot-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	if frameSize <= 0 {
		frameSize = defaultFrameSize
	}
	return &FFmpegExtractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		frameSize:   frameSize,
	}, nil
}

func (fe *FFmpegExtractor) ExtractFrame(ctx context.Context, path string, timestamp float64) ([]byte, error) {
	tempFile := filepath.Join(fe.tempDir, fmt.Sprintf("frame_%s.jpg", uuid.New().String()))
	defer os.Remove(tempFile)

	size := fe.frameSize
	args := []string{
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", path,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black", size, size, size, size),
		"-q:v", "2",
		"-f", "mjpeg",
		tempFile,
	}

	cmd := exec.CommandContext(ctx, fe.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to extract frame at %.3fs: %w (output: %.300s)", timestamp, err, stderr.String())
	}

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer file.Close()

	img, err := jpeg.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (fe *FFmpegExtractor) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, fe.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid video duration: %f", duration)
	}
	return duration, nil
}

// Cleanup removes the extractor's temp directory.
func (fe *FFmpegExtractor) Cleanup() error {
	return os.RemoveAll(fe.tempDir)
}
