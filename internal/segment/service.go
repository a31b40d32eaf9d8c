package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/imaging"
	"github.com/stepshot/stepshot/internal/metrics"
	"github.com/stepshot/stepshot/internal/models"
)

// ErrNoVideo is returned when the source video is missing or unreadable.
var ErrNoVideo = errors.New("video not found")

const (
	// Minimum spacing between kept timestamps.
	minSpacing = 0.5

	DefaultThreshold = 0.2
	DefaultMinFrames = 10
	DefaultMaxFrames = 60
)

// Config tunes the segmentation service.
type Config struct {
	// Threshold is the initial scene-change threshold.
	Threshold float64
	// MinFrames and MaxFrames bound the output frame count.
	MinFrames int
	MaxFrames int
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinFrames <= 0 {
		c.MinFrames = DefaultMinFrames
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = DefaultMaxFrames
	}
}

// Service turns a finished video into a bounded, deduplicated,
// chronologically ordered set of extracted frames. Stateless; independent
// videos may be segmented in parallel.
//
// When detection under-produces even after the halved-threshold retry, the
// evenly spaced fallback replaces the detected cuts entirely rather than
// merging with them.
type Service struct {
	detector  SceneDetector
	extractor FrameExtractor
	prober    VideoProber
	cfg       Config
	logger    *zap.Logger
}

func NewService(detector SceneDetector, extractor FrameExtractor, prober VideoProber, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		detector:  detector,
		extractor: extractor,
		prober:    prober,
		cfg:       cfg,
		logger:    logger,
	}
}

// Segment selects scene-cut timestamps for the video and extracts one frame
// per surviving timestamp. Detector or probe failure is fatal; per-timestamp
// extraction failures are logged and merely reduce the output count.
func (s *Service) Segment(ctx context.Context, videoID, path string) (models.SceneSegment, error) {
	started := time.Now()
	defer func() {
		metrics.SegmentationDuration.Observe(time.Since(started).Seconds())
	}()

	if path == "" {
		return models.SceneSegment{}, ErrNoVideo
	}
	if _, err := os.Stat(path); err != nil {
		return models.SceneSegment{}, fmt.Errorf("%w: %s", ErrNoVideo, path)
	}

	duration, err := s.prober.Duration(ctx, path)
	if err != nil {
		return models.SceneSegment{}, fmt.Errorf("probing video: %w", err)
	}

	timestamps, err := s.selectTimestamps(ctx, path, duration)
	if err != nil {
		return models.SceneSegment{}, err
	}

	frames, err := s.extractFrames(ctx, path, timestamps)
	if err != nil {
		return models.SceneSegment{}, err
	}

	s.logger.Info("video segmented",
		zap.String("video_id", videoID),
		zap.Float64("duration", duration),
		zap.Int("timestamps", len(timestamps)),
		zap.Int("frames", len(frames)),
	)
	return models.SceneSegment{VideoID: videoID, Frames: frames}, nil
}

// selectTimestamps runs the detection ladder: detect at the configured
// threshold, retry once at half the threshold when under-producing, fall
// back to evenly spaced sampling, then downsample to the maximum and dedupe
// to the minimum spacing.
func (s *Service) selectTimestamps(ctx context.Context, path string, duration float64) ([]float64, error) {
	timestamps, err := s.detector.DetectScenes(ctx, path, 0, duration, s.cfg.Threshold)
	if err != nil {
		metrics.DetectorRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scene detection: %w", err)
	}
	metrics.DetectorRunsTotal.WithLabelValues("ok").Inc()

	if len(timestamps) < s.cfg.MinFrames {
		retryThreshold := s.cfg.Threshold * 0.5
		s.logger.Info("too few scene cuts, retrying at lower threshold",
			zap.Int("detected", len(timestamps)),
			zap.Float64("threshold", retryThreshold),
		)
		metrics.DetectorRunsTotal.WithLabelValues("retry").Inc()

		timestamps, err = s.detector.DetectScenes(ctx, path, 0, duration, retryThreshold)
		if err != nil {
			metrics.DetectorRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("scene detection retry: %w", err)
		}
	}

	if len(timestamps) < s.cfg.MinFrames {
		s.logger.Info("detection under-produced, falling back to even spacing",
			zap.Int("detected", len(timestamps)),
			zap.Int("min_frames", s.cfg.MinFrames),
		)
		timestamps = evenTimestamps(duration, s.cfg.MinFrames)
	}

	sort.Float64s(timestamps)

	if len(timestamps) > s.cfg.MaxFrames {
		timestamps = downsample(timestamps, s.cfg.MaxFrames)
	}

	return dedupe(timestamps, minSpacing), nil
}

func (s *Service) extractFrames(ctx context.Context, path string, timestamps []float64) ([]models.CapturedFrame, error) {
	frames := make([]models.CapturedFrame, 0, len(timestamps))
	var prev *imaging.Buffer

	for _, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.extractor.ExtractFrame(ctx, path, ts)
		if err != nil {
			metrics.FrameExtractionFailuresTotal.Inc()
			s.logger.Warn("dropping timestamp, extraction failed",
				zap.Float64("timestamp", ts),
				zap.Error(err),
			)
			continue
		}

		frame := models.CapturedFrame{Timestamp: ts, Image: data, SceneDelta: 1.0}
		if buf := decodeBuffer(data); buf != nil {
			frame.Sharpness = imaging.LaplacianVariance(buf)
			if prev != nil {
				frame.SceneDelta = imaging.SceneDelta(prev, buf)
			}
			prev = buf
		}

		frames = append(frames, frame)
		metrics.FramesExtractedTotal.Inc()
	}
	return frames, nil
}

// evenTimestamps spreads count timestamps over the interval the way a fixed
// sampling pass would, leaving margins at both ends.
func evenTimestamps(duration float64, count int) []float64 {
	interval := duration / float64(count+1)
	out := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, interval*float64(i))
	}
	return out
}

// downsample picks limit evenly spaced positions from the sorted list.
func downsample(sorted []float64, limit int) []float64 {
	if limit <= 1 {
		return sorted[:1]
	}
	out := make([]float64, 0, limit)
	last := len(sorted) - 1
	for i := 0; i < limit; i++ {
		out = append(out, sorted[i*last/(limit-1)])
	}
	return out
}

// dedupe drops any timestamp within spacing of the previously kept one.
func dedupe(sorted []float64, spacing float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for _, ts := range sorted {
		if len(out) > 0 && ts-out[len(out)-1] < spacing {
			continue
		}
		out = append(out, ts)
	}
	return out
}

func decodeBuffer(data []byte) *imaging.Buffer {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return imaging.FromImage(img)
}
