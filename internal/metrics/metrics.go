package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepshot_frames_extracted_total",
		Help: "Total number of frames extracted across all segmentation requests",
	})

	FrameExtractionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepshot_frame_extraction_failures_total",
		Help: "Per-timestamp frame extraction failures (recoverable)",
	})

	DetectorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepshot_detector_runs_total",
		Help: "Scene detector invocations, by outcome",
	}, []string{"outcome"})

	SegmentationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stepshot_segmentation_duration_seconds",
		Help:    "Duration of full scene-segmentation requests",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	AlignmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stepshot_alignment_duration_seconds",
		Help:    "Duration of frame-to-step alignment requests",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepshot_cache_requests_total",
		Help: "Content-addressed cache lookups, by kind and result",
	}, []string{"kind", "result"})
)
