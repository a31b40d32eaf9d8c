package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stepshot/stepshot/internal/align"
	"github.com/stepshot/stepshot/internal/cache"
	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/models"
	"github.com/stepshot/stepshot/internal/procedure"
	"github.com/stepshot/stepshot/internal/segment"
	"github.com/stepshot/stepshot/pkg/logger"
)

var (
	threshold float64
	minFrames int
	maxFrames int
	frameSize int
	framesDir string
	stepsFile string
	jumpCost  float64
	topK      int
	cacheDB   string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stepshot",
		Short: "Turn procedure videos into step-aligned still frames",
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	segmentCmd := &cobra.Command{
		Use:   "segment <video>",
		Short: "Find scene cuts in a video and extract one frame per cut",
		Args:  cobra.ExactArgs(1),
		RunE:  runSegment,
	}
	segmentCmd.Flags().Float64Var(&threshold, "threshold", segment.DefaultThreshold, "Initial scene-change threshold")
	segmentCmd.Flags().IntVar(&minFrames, "min-frames", segment.DefaultMinFrames, "Minimum frames to produce")
	segmentCmd.Flags().IntVar(&maxFrames, "max-frames", segment.DefaultMaxFrames, "Maximum frames to produce")
	segmentCmd.Flags().IntVar(&frameSize, "frame-size", 512, "Extracted frame size in pixels")
	segmentCmd.Flags().StringVar(&framesDir, "out", "", "Directory to write extracted frames into")
	rootCmd.AddCommand(segmentCmd)

	alignCmd := &cobra.Command{
		Use:   "align <video>",
		Short: "Segment a video and align its frames to a list of step texts",
		Args:  cobra.ExactArgs(1),
		RunE:  runAlign,
	}
	alignCmd.Flags().StringVar(&stepsFile, "steps", "", "File with one step text per line (required)")
	alignCmd.Flags().Float64Var(&threshold, "threshold", segment.DefaultThreshold, "Initial scene-change threshold")
	alignCmd.Flags().IntVar(&minFrames, "min-frames", segment.DefaultMinFrames, "Minimum frames to produce")
	alignCmd.Flags().IntVar(&maxFrames, "max-frames", segment.DefaultMaxFrames, "Maximum frames to produce")
	alignCmd.Flags().IntVar(&frameSize, "frame-size", 512, "Extracted frame size in pixels")
	alignCmd.Flags().Float64Var(&jumpCost, "jump-cost", align.DefaultJumpCost, "Positional jump penalty")
	alignCmd.Flags().IntVar(&topK, "top-k", align.DefaultTopK, "Ranked alternatives per step")
	alignCmd.Flags().StringVar(&cacheDB, "cache", "./stepshot-cache.db", "SQLite cache database path")
	alignCmd.MarkFlagRequired("steps")
	rootCmd.AddCommand(alignCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newSegmenter(cmd *cobra.Command) (*segment.Service, error) {
	log, err := logger.New(logLevel)
	if err != nil {
		return nil, err
	}

	detector, err := segment.NewFFmpegDetector()
	if err != nil {
		return nil, err
	}
	extractor, err := segment.NewFFmpegExtractor(frameSize)
	if err != nil {
		return nil, err
	}

	return segment.NewService(detector, extractor, extractor, segment.Config{
		Threshold: threshold,
		MinFrames: minFrames,
		MaxFrames: maxFrames,
	}, log), nil
}

func runSegment(cmd *cobra.Command, args []string) error {
	svc, err := newSegmenter(cmd)
	if err != nil {
		return err
	}

	seg, err := svc.Segment(cmd.Context(), args[0], args[0])
	if err != nil {
		return err
	}

	for i, frame := range seg.Frames {
		fmt.Printf("%3d  %8.3fs  sharpness=%.1f  delta=%.3f\n", i, frame.Timestamp, frame.Sharpness, frame.SceneDelta)
	}

	if framesDir != "" {
		if err := os.MkdirAll(framesDir, 0755); err != nil {
			return err
		}
		for i, frame := range seg.Frames {
			name := fmt.Sprintf("%s/frame_%04d.jpg", framesDir, i)
			if err := os.WriteFile(name, frame.Image, 0644); err != nil {
				return err
			}
		}
		fmt.Printf("wrote %d frames to %s\n", len(seg.Frames), framesDir)
	}
	return nil
}

func runAlign(cmd *cobra.Command, args []string) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for alignment")
	}

	steps, err := readSteps(stepsFile)
	if err != nil {
		return err
	}

	log, err := logger.New(logLevel)
	if err != nil {
		return err
	}

	svc, err := newSegmenter(cmd)
	if err != nil {
		return err
	}

	store, err := cache.NewStore(cache.Config{Backend: "sqlite", SQLitePath: cacheDB})
	if err != nil {
		return err
	}
	defer store.Close()

	openaiClient := inference.NewOpenAIClient(apiKey)
	cached := cache.NewClient(store, openaiClient, openaiClient, log)
	engine := align.NewEngine(jumpCost, topK, log)
	pipeline := procedure.NewService(svc, cached, engine, openaiClient, log)

	result, err := pipeline.AlignVideo(cmd.Context(), args[0], args[0], steps)
	if err != nil {
		return err
	}

	for _, sa := range result.Alignment.Steps {
		if sa.CandidateIndex < 0 {
			fmt.Printf("step %d: %-40s  -> (no frame)\n", sa.StepIndex, steps[sa.StepIndex].Text)
			continue
		}
		frame := result.Frames[sa.CandidateIndex]
		fmt.Printf("step %d: %-40s  -> frame %d @ %.3fs (score %.3f)\n",
			sa.StepIndex, steps[sa.StepIndex].Text, sa.CandidateIndex, frame.Timestamp, sa.Score)
	}
	if result.Transcript != "" {
		fmt.Printf("\ntranscript:\n%s\n", result.Transcript)
	}
	return nil
}

func readSteps(path string) ([]models.StepText, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading steps file: %w", err)
	}
	defer file.Close()

	var steps []models.StepText
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		steps = append(steps, models.StepText{Index: len(steps), Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}
