package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/align"
	"github.com/stepshot/stepshot/internal/api"
	"github.com/stepshot/stepshot/internal/cache"
	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/models"
	"github.com/stepshot/stepshot/internal/procedure"
	"github.com/stepshot/stepshot/internal/storage"
)

type TestServer struct {
	Server    *httptest.Server
	App       *api.App
	Storage   storage.Storage
	Cache     cache.Store
	Inference *countingInference
	Segmenter *fixedSegmenter
}

// fixedSegmenter stands in for the ffmpeg pipeline: it returns a fixed
// ordered frame set whose image bytes the fake inference can recognize.
type fixedSegmenter struct {
	frames []models.CapturedFrame
	calls  int
}

func (s *fixedSegmenter) Segment(_ context.Context, videoID, _ string) (models.SceneSegment, error) {
	s.calls++
	return models.SceneSegment{VideoID: videoID, Frames: s.frames}, nil
}

// countingInference labels each frame with its raw image content and embeds
// texts as byte histograms, so a step text equal to a frame's content scores
// a perfect match. Call counts expose cache behavior across requests.
type countingInference struct {
	LabelCalls int
	EmbedCalls int
}

func (c *countingInference) LabelImage(_ context.Context, image []byte) ([]inference.Label, error) {
	c.LabelCalls++
	return []inference.Label{{Name: string(image), Score: 0.95}}, nil
}

func (c *countingInference) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.EmbedCalls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 128)
		for _, b := range []byte(text) {
			vec[b%128]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()

	tempDir := t.TempDir()

	localStorage, err := storage.NewLocalStorage(filepath.Join(tempDir, "uploads"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	store, err := cache.NewStore(cache.Config{
		Backend:    "sqlite",
		SQLitePath: filepath.Join(tempDir, "cache.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := zap.NewNop()
	infer := &countingInference{}
	cacheClient := cache.NewClient(store, infer, infer, logger)

	segmenter := &fixedSegmenter{frames: []models.CapturedFrame{
		{Timestamp: 1.0, Image: []byte("pour the coffee")},
		{Timestamp: 4.5, Image: []byte("stir the cup")},
		{Timestamp: 9.0, Image: []byte("wipe the counter")},
	}}

	engine := align.NewEngine(align.DefaultJumpCost, align.DefaultTopK, logger)
	pipeline := procedure.NewService(segmenter, cacheClient, engine, nil, logger)

	app := &api.App{
		Storage:       localStorage,
		Videos:        api.NewVideoRegistry(),
		Segmenter:     segmenter,
		Aligner:       pipeline,
		MaxUploadSize: 10 * 1024 * 1024,
		Logger:        logger,
	}

	server := httptest.NewServer(api.NewRouter(app))
	t.Cleanup(server.Close)

	return &TestServer{
		Server:    server,
		App:       app,
		Storage:   localStorage,
		Cache:     store,
		Inference: infer,
		Segmenter: segmenter,
	}
}

func createMultipartUpload(title, filename string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("video", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		return nil, "", err
	}

	if err := writer.WriteField("title", title); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func uploadTestVideo(t *testing.T, server, title string) *http.Response {
	t.Helper()

	content := []byte("fake mp4 content for testing")
	body, contentType, err := createMultipartUpload(title, "test.mp4", content)
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/videos", server), body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to upload video: %v", err)
	}
	return resp
}
