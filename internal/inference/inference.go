package inference

import (
	"context"
	"io"
	"sort"
	"strings"
)

// Label is one ranked image-content label.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Labeler classifies image content into ranked labels.
type Labeler interface {
	LabelImage(ctx context.Context, image []byte) ([]Label, error)
}

// Embedder turns a batch of strings into fixed-length vectors, one per
// input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Transcriber converts an audio blob into a transcript. A failed
// transcription is non-fatal for callers; they proceed with an empty string.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Describe derives a short text description from ranked labels by joining
// the top five by score.
func Describe(labels []Label) string {
	sorted := make([]Label, len(labels))
	copy(sorted, labels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	names := make([]string, 0, len(sorted))
	for _, l := range sorted {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return strings.Join(names, ", ")
}
