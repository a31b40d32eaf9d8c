package capture

import (
	"bytes"
	"image/jpeg"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/imaging"
	"github.com/stepshot/stepshot/internal/models"
)

// Threshold extremes the sensitivity knob interpolates between. Sensitivity 0
// keeps few frames (high scene threshold, long minimum interval), 100 keeps
// many.
const (
	thresholdMax = 0.20
	thresholdMin = 0.02
	intervalMax  = 8.0
	intervalMin  = 1.5

	// The first few frames are kept even when blurry so a short recording
	// never ends up empty of usable frames.
	blurGraceFrames = 5

	DefaultMaxFrames = 60
)

// FrameSource yields the current raw frame for a tick. ok is false when the
// source has no readable frame yet (not ready or ended); that tick is a no-op.
type FrameSource interface {
	NextFrame() (buf *imaging.Buffer, ok bool)
}

// Config tunes the capture controller.
type Config struct {
	// Sensitivity in [0,100]; higher keeps more frames.
	Sensitivity float64
	// MaxFrames bounds the output sequence. Defaults to DefaultMaxFrames.
	MaxFrames int
	// SharpenOnKeep applies a 3x3 sharpening pass to kept frames.
	SharpenOnKeep bool
}

// Controller decides, tick by tick, which frames of a live stream to keep.
// It owns all of its mutable state; ticks must be serialized by the caller
// (single-writer discipline), while Frames snapshots are safe to hand out
// since the sequence is append-only.
type Controller struct {
	source FrameSource
	cfg    Config
	logger *zap.Logger

	// Derived thresholds, recomputed whenever sensitivity changes so the
	// next tick always sees current values.
	sceneThreshold float64
	minInterval    float64

	lastKeptAt float64
	prev       *imaging.Buffer
	frames     []models.CapturedFrame
	ticks      int
}

func NewController(source FrameSource, cfg Config, logger *zap.Logger) *Controller {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	c := &Controller{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
	c.SetSensitivity(cfg.Sensitivity)
	return c
}

// SetSensitivity updates the sensitivity and recomputes the derived
// thresholds. Call between ticks only.
func (c *Controller) SetSensitivity(s float64) {
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	c.cfg.Sensitivity = s
	c.sceneThreshold = thresholdMax - (s/100.0)*(thresholdMax-thresholdMin)
	c.minInterval = max(intervalMin, intervalMax-(s/100.0)*(intervalMax-intervalMin))
}

// SceneThreshold returns the current derived scene-change threshold.
func (c *Controller) SceneThreshold() float64 { return c.sceneThreshold }

// MinInterval returns the current derived minimum seconds between keeps.
func (c *Controller) MinInterval() float64 { return c.minInterval }

// Tick samples one frame at the given elapsed recording time and decides
// whether to keep it. Returns true when a frame was kept.
func (c *Controller) Tick(elapsed float64) bool {
	buf, ok := c.source.NextFrame()
	if !ok {
		return false
	}
	c.ticks++

	first := len(c.frames) == 0
	delta := 1.0
	if !first {
		delta = imaging.SceneDelta(c.prev, buf)
	}
	sharpness := imaging.LaplacianVariance(buf)
	blurry := sharpness < imaging.BlurThreshold

	keep := first
	if !keep {
		keep = len(c.frames) < c.cfg.MaxFrames &&
			elapsed-c.lastKeptAt >= c.minInterval &&
			delta > c.sceneThreshold &&
			(!blurry || len(c.frames) < blurGraceFrames)
	}
	if !keep {
		return false
	}

	stored := buf
	if c.cfg.SharpenOnKeep {
		stored = imaging.Sharpen(buf)
	}
	encoded, err := encodeJPEG(stored)
	if err != nil {
		c.logger.Warn("dropping kept frame, encode failed",
			zap.Float64("elapsed", elapsed),
			zap.Error(err),
		)
		return false
	}

	c.frames = append(c.frames, models.CapturedFrame{
		Timestamp:  elapsed,
		Image:      encoded,
		Sharpness:  sharpness,
		SceneDelta: delta,
	})
	c.prev = buf
	c.lastKeptAt = elapsed

	c.logger.Debug("frame kept",
		zap.Float64("elapsed", elapsed),
		zap.Float64("scene_delta", delta),
		zap.Float64("sharpness", sharpness),
		zap.Int("total", len(c.frames)),
	)
	return true
}

// Frames returns an append-only snapshot of the kept frames.
func (c *Controller) Frames() []models.CapturedFrame {
	return c.frames[:len(c.frames):len(c.frames)]
}

// Finalize flushes the accumulated sequence as the final segment for the
// recording. The controller itself has nothing to clean up; stopping the
// tick timer is the caller's job.
func (c *Controller) Finalize(videoID string) models.SceneSegment {
	return models.SceneSegment{VideoID: videoID, Frames: c.Frames()}
}

func encodeJPEG(b *imaging.Buffer) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, b.ToImage(), &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
