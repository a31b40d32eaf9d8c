package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDetector struct {
	calls    []float64
	byThresh map[float64][]float64
	err      error
}

func (d *fakeDetector) DetectScenes(_ context.Context, _ string, _, _, threshold float64) ([]float64, error) {
	d.calls = append(d.calls, threshold)
	if d.err != nil {
		return nil, d.err
	}
	return d.byThresh[threshold], nil
}

type fakeExtractor struct {
	failAt map[float64]bool
	calls  int
}

func (e *fakeExtractor) ExtractFrame(_ context.Context, _ string, ts float64) ([]byte, error) {
	e.calls++
	if e.failAt[ts] {
		return nil, fmt.Errorf("extraction failed at %f", ts)
	}
	return []byte(fmt.Sprintf("frame@%f", ts)), nil
}

type fakeProber struct {
	duration float64
	err      error
}

func (p *fakeProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

func tempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video"), 0644))
	return path
}

func newTestService(d SceneDetector, e FrameExtractor, p VideoProber, cfg Config) *Service {
	return NewService(d, e, p, cfg, zap.NewNop())
}

func TestSegmentFallbackBounds(t *testing.T) {
	// A video with only 3 true scene cuts at either threshold must still
	// yield minFrames timestamps via the evenly spaced fallback.
	detector := &fakeDetector{byThresh: map[float64][]float64{
		0.2: {5.0, 20.0, 40.0},
		0.1: {5.0, 20.0, 40.0},
	}}
	extractor := &fakeExtractor{}
	prober := &fakeProber{duration: 60}

	svc := newTestService(detector, extractor, prober, Config{MinFrames: 10, MaxFrames: 60})
	seg, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2, 0.1}, detector.calls, "one retry at half threshold")
	require.GreaterOrEqual(t, len(seg.Frames), 10)

	for i := 1; i < len(seg.Frames); i++ {
		gap := seg.Frames[i].Timestamp - seg.Frames[i-1].Timestamp
		assert.GreaterOrEqual(t, gap, 0.5, "timestamps must be >= 0.5s apart and ascending")
	}
}

func TestSegmentRetrySucceeds(t *testing.T) {
	many := make([]float64, 15)
	for i := range many {
		many[i] = float64(i) * 4
	}
	detector := &fakeDetector{byThresh: map[float64][]float64{
		0.2: {10.0},
		0.1: many,
	}}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 60}, Config{MinFrames: 10})

	seg, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err)
	assert.Len(t, detector.calls, 2)
	assert.Len(t, seg.Frames, 15, "retry results used, no fallback")
}

func TestSegmentNoRetryWhenEnough(t *testing.T) {
	many := make([]float64, 12)
	for i := range many {
		many[i] = float64(i) * 5
	}
	detector := &fakeDetector{byThresh: map[float64][]float64{0.2: many}}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 60}, Config{MinFrames: 10})

	_, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2}, detector.calls)
}

func TestSegmentDownsampleToMax(t *testing.T) {
	var many []float64
	for i := 0; i < 200; i++ {
		many = append(many, float64(i))
	}
	detector := &fakeDetector{byThresh: map[float64][]float64{0.2: many}}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 200}, Config{MinFrames: 10, MaxFrames: 60})

	seg, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err)
	assert.Len(t, seg.Frames, 60)
	assert.Len(t, detector.calls, 1, "downsampling never re-runs detection")
}

func TestSegmentDedupeSpacing(t *testing.T) {
	detector := &fakeDetector{byThresh: map[float64][]float64{
		0.2: {1.0, 1.2, 1.4, 5.0, 5.3, 10.0, 15.0, 20.0, 25.0, 30.0, 35.0, 40.0},
	}}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 60}, Config{MinFrames: 5})

	seg, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err)

	want := []float64{1.0, 5.0, 10.0, 15.0, 20.0, 25.0, 30.0, 35.0, 40.0}
	got := make([]float64, len(seg.Frames))
	for i, f := range seg.Frames {
		got[i] = f.Timestamp
	}
	assert.Equal(t, want, got)
}

func TestSegmentExtractionFailureRecoverable(t *testing.T) {
	detector := &fakeDetector{byThresh: map[float64][]float64{
		0.2: {5, 10, 15, 20, 25, 30},
	}}
	extractor := &fakeExtractor{failAt: map[float64]bool{15: true, 25: true}}
	svc := newTestService(detector, extractor, &fakeProber{duration: 60}, Config{MinFrames: 3})

	seg, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.NoError(t, err, "per-timestamp failures must not be fatal")
	assert.Len(t, seg.Frames, 4)
	for _, f := range seg.Frames {
		assert.NotContains(t, []float64{15, 25}, f.Timestamp)
	}
}

func TestSegmentDetectorFailureFatal(t *testing.T) {
	detector := &fakeDetector{err: fmt.Errorf("detector crashed")}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 60}, Config{})

	_, err := svc.Segment(context.Background(), "vid", tempVideo(t))
	require.Error(t, err)
}

func TestSegmentMissingVideo(t *testing.T) {
	svc := newTestService(&fakeDetector{}, &fakeExtractor{}, &fakeProber{duration: 60}, Config{})

	_, err := svc.Segment(context.Background(), "vid", "/does/not/exist.mp4")
	require.ErrorIs(t, err, ErrNoVideo)

	_, err = svc.Segment(context.Background(), "vid", "")
	require.ErrorIs(t, err, ErrNoVideo)
}

func TestSegmentCancellation(t *testing.T) {
	detector := &fakeDetector{byThresh: map[float64][]float64{
		0.2: {5, 10, 15, 20, 25, 30, 35, 40, 45, 50},
	}}
	svc := newTestService(detector, &fakeExtractor{}, &fakeProber{duration: 60}, Config{MinFrames: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Segment(ctx, "vid", tempVideo(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvenTimestamps(t *testing.T) {
	ts := evenTimestamps(60, 5)
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, ts)
}

func TestDownsampleKeepsEnds(t *testing.T) {
	in := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	out := downsample(in, 4)
	assert.Equal(t, 4, len(out))
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 9.0, out[len(out)-1])
}
