package procedure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/align"
	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/metrics"
	"github.com/stepshot/stepshot/internal/models"
)

var ErrNoSteps = errors.New("no step texts provided")

// Segmenter produces the candidate frame set for a finished video.
type Segmenter interface {
	Segment(ctx context.Context, videoID, path string) (models.SceneSegment, error)
}

// Service runs the full batch pipeline for one video: segment into frames,
// align the frames to the step texts, and optionally transcribe the audio
// track for downstream step authoring.
type Service struct {
	segmenter   Segmenter
	infer       align.InferenceSource
	engine      *align.Engine
	transcriber inference.Transcriber
	logger      *zap.Logger
}

func NewService(segmenter Segmenter, infer align.InferenceSource, engine *align.Engine, transcriber inference.Transcriber, logger *zap.Logger) *Service {
	return &Service{
		segmenter:   segmenter,
		infer:       infer,
		engine:      engine,
		transcriber: transcriber,
		logger:      logger,
	}
}

// AlignmentResult is the immutable outcome of one pipeline run.
type AlignmentResult struct {
	ID         string               `json:"id"`
	VideoID    string               `json:"video_id"`
	Frames     []models.CapturedFrame `json:"frames"`
	Alignment  align.Result         `json:"alignment"`
	Transcript string               `json:"transcript,omitempty"`
	Elapsed    time.Duration        `json:"-"`
}

// AlignVideo segments the video and aligns the resulting frames to the
// given ordered steps. Step indices must form a dense 0..N-1 sequence.
func (s *Service) AlignVideo(ctx context.Context, videoID, path string, steps []models.StepText) (*AlignmentResult, error) {
	started := time.Now()
	defer func() {
		metrics.AlignmentDuration.Observe(time.Since(started).Seconds())
	}()

	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	seg, err := s.segmenter.Segment(ctx, videoID, path)
	if err != nil {
		return nil, fmt.Errorf("segmenting video: %w", err)
	}

	candidates := make([]align.Candidate, len(seg.Frames))
	for i, frame := range seg.Frames {
		candidates[i] = align.Candidate{FrameIndex: i, Frame: frame}
	}

	alignment, err := s.engine.Align(ctx, s.infer, steps, candidates)
	if err != nil {
		return nil, fmt.Errorf("aligning frames: %w", err)
	}

	result := &AlignmentResult{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Frames:    seg.Frames,
		Alignment: *alignment,
		Elapsed:   time.Since(started),
	}
	result.Transcript = s.transcribe(ctx, path)

	s.logger.Info("video aligned",
		zap.String("video_id", videoID),
		zap.Int("steps", len(steps)),
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// transcribe runs speech-to-text over the video's audio track. Failures are
// non-fatal; the pipeline proceeds with an empty transcript.
func (s *Service) transcribe(ctx context.Context, path string) string {
	if s.transcriber == nil {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn("skipping transcription, cannot open video", zap.Error(err))
		return ""
	}
	defer file.Close()

	transcript, err := s.transcriber.Transcribe(ctx, file, "audio.mp4")
	if err != nil {
		s.logger.Warn("skipping transcription", zap.Error(err))
		return ""
	}
	return transcript
}

func validateSteps(steps []models.StepText) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	for i, step := range steps {
		if step.Index != i {
			return fmt.Errorf("step indices must be dense 0..N-1, got %d at position %d", step.Index, i)
		}
	}
	return nil
}
