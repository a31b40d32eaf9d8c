package align

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/models"
)

const (
	// DefaultJumpCost is the lambda in penalty(a, b) = lambda*|a-b|/100,
	// charged per positional distance between consecutive chosen candidates.
	DefaultJumpCost = 0.02
	// DefaultTopK is how many ranked alternatives each step reports.
	DefaultTopK = 3
)

// Candidate is a frame eligible to represent a procedure step. FrameIndex is
// the frame's global capture order; LocalIndex orders candidates sampled for
// the same frame.
type Candidate struct {
	FrameIndex int
	LocalIndex int
	Frame      models.CapturedFrame
}

// Position is the candidate's scalar chronological position. Candidates of
// the same frame stay adjacent but ordered.
func (c Candidate) Position() int {
	return c.FrameIndex*100 + c.LocalIndex
}

// ScoredCandidate annotates a candidate index with its raw similarity score.
type ScoredCandidate struct {
	CandidateIndex int     `json:"candidate_index"`
	Score          float64 `json:"score"`
}

// StepAssignment is the chosen candidate for one step. CandidateIndex is -1
// when no candidate was assigned. TopK lists the highest-scoring candidates
// for the step regardless of monotonicity.
type StepAssignment struct {
	StepIndex      int               `json:"step_index"`
	CandidateIndex int               `json:"candidate_index"`
	Score          float64           `json:"score"`
	TopK           []ScoredCandidate `json:"top_k"`
}

// Result is an immutable alignment outcome: one assignment per step.
type Result struct {
	Steps []StepAssignment `json:"steps"`
}

// InferenceSource provides cache-wrapped access to the external labeling and
// embedding services.
type InferenceSource interface {
	ImageLabels(ctx context.Context, image []byte) ([]inference.Label, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine assigns ordered steps to chronologically positioned candidates by
// monotonic dynamic programming: the chosen candidate positions strictly
// increase with step index, and total similarity minus jump penalty is the
// global optimum over all such assignments. Stateless; safe for concurrent
// use across independent requests.
type Engine struct {
	jumpCost float64
	topK     int
	logger   *zap.Logger
}

// NewEngine builds an engine with the given tuning. A zero jumpCost is
// valid and disables the positional penalty; negative values fall back to
// the default.
func NewEngine(jumpCost float64, topK int, logger *zap.Logger) *Engine {
	if jumpCost < 0 {
		jumpCost = DefaultJumpCost
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{jumpCost: jumpCost, topK: topK, logger: logger}
}

// Align runs the full pipeline for one request: derive a description per
// candidate from its image labels, embed step texts and descriptions through
// the cache, build the similarity matrix, and solve the assignment.
// A candidate whose labeling fails is excluded (negative-infinity column);
// an embedding batch failure is fatal for the request.
func (e *Engine) Align(ctx context.Context, src InferenceSource, steps []models.StepText, candidates []Candidate) (*Result, error) {
	if len(steps) == 0 {
		return &Result{}, nil
	}

	sim, err := e.buildMatrix(ctx, src, steps, candidates)
	if err != nil {
		return nil, err
	}

	positions := make([]int, len(candidates))
	for j, c := range candidates {
		positions[j] = c.Position()
	}

	result := e.Assign(sim, positions)
	return &result, nil
}

func (e *Engine) buildMatrix(ctx context.Context, src InferenceSource, steps []models.StepText, candidates []Candidate) ([][]float64, error) {
	negInf := math.Inf(-1)

	descriptions := make([]string, len(candidates))
	excluded := make([]bool, len(candidates))
	for j, c := range candidates {
		labels, err := src.ImageLabels(ctx, c.Frame.Image)
		if err != nil {
			e.logger.Warn("candidate excluded, labeling failed",
				zap.Int("candidate", j),
				zap.Float64("timestamp", c.Frame.Timestamp),
				zap.Error(err),
			)
			excluded[j] = true
			continue
		}
		descriptions[j] = inference.Describe(labels)
		if descriptions[j] == "" {
			excluded[j] = true
		}
	}

	// One batched embedding request for step texts and candidate
	// descriptions; the cache serves whatever subset it already holds.
	inputs := make([]string, 0, len(steps)+len(candidates))
	for _, s := range steps {
		inputs = append(inputs, s.Text)
	}
	descIdx := make([]int, len(candidates))
	for j := range candidates {
		descIdx[j] = -1
		if !excluded[j] {
			descIdx[j] = len(inputs)
			inputs = append(inputs, descriptions[j])
		}
	}

	vectors, err := src.EmbedTexts(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embedding step texts and descriptions: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d inputs", len(vectors), len(inputs))
	}

	sim := make([][]float64, len(steps))
	for i := range steps {
		sim[i] = make([]float64, len(candidates))
		for j := range candidates {
			if excluded[j] {
				sim[i][j] = negInf
				continue
			}
			sim[i][j] = Cosine(vectors[i], vectors[descIdx[j]])
		}
	}
	return sim, nil
}

// Assign solves the monotonic assignment for a prebuilt similarity matrix.
// sim has one row per step and one column per candidate; positions has one
// entry per candidate column. Deterministic:
// on exact dp ties the first-encountered (lowest index) candidate wins.
func (e *Engine) Assign(sim [][]float64, positions []int) Result {
	negInf := math.Inf(-1)
	s := len(sim)
	result := Result{Steps: make([]StepAssignment, s)}
	if s == 0 {
		result.Steps = nil
		return result
	}
	c := len(positions)

	for i := range result.Steps {
		result.Steps[i] = StepAssignment{
			StepIndex:      i,
			CandidateIndex: -1,
			TopK:           e.topCandidates(sim[i]),
		}
	}
	if c == 0 {
		return result
	}

	dp := make([][]float64, s)
	back := make([][]int, s)
	for i := range dp {
		dp[i] = make([]float64, c)
		back[i] = make([]int, c)
	}

	copy(dp[0], sim[0])
	for j := range back[0] {
		back[0][j] = -1
	}

	for i := 1; i < s; i++ {
		for j := 0; j < c; j++ {
			best := negInf
			bestK := -1
			for k := 0; k < c; k++ {
				if positions[k] >= positions[j] || dp[i-1][k] == negInf {
					continue
				}
				v := dp[i-1][k] + sim[i][j] - e.penalty(positions[j], positions[k])
				if v > best {
					best = v
					bestK = k
				}
			}
			if bestK == -1 {
				dp[i][j] = negInf
			} else {
				dp[i][j] = best
			}
			back[i][j] = bestK
		}
	}

	endJ := -1
	endScore := negInf
	for j := 0; j < c; j++ {
		if dp[s-1][j] > endScore {
			endScore = dp[s-1][j]
			endJ = j
		}
	}
	if endJ == -1 || endScore == negInf {
		// No strictly increasing assignment covers every step.
		return result
	}

	j := endJ
	for i := s - 1; i >= 0; i-- {
		result.Steps[i].CandidateIndex = j
		result.Steps[i].Score = sim[i][j]
		j = back[i][j]
	}
	return result
}

func (e *Engine) penalty(a, b int) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return e.jumpCost * float64(d) / 100.0
}

// topCandidates ranks one similarity row, skipping excluded columns.
// Ties keep the lower candidate index first.
func (e *Engine) topCandidates(row []float64) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(row))
	for j, score := range row {
		if math.IsInf(score, -1) {
			continue
		}
		ranked = append(ranked, ScoredCandidate{CandidateIndex: j, Score: score})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	if len(ranked) > e.topK {
		ranked = ranked[:e.topK]
	}
	return ranked
}
