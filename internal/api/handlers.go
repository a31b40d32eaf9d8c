package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/models"
	"github.com/stepshot/stepshot/internal/procedure"
	"github.com/stepshot/stepshot/internal/segment"
	"github.com/stepshot/stepshot/internal/storage"
)

// Both batch endpoints shell out to ffmpeg repeatedly; cap how long one
// request may hold a worker.
const requestTimeout = 10 * time.Minute

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// Segmenter is the batch path: video in, ordered frame set out.
type Segmenter interface {
	Segment(ctx context.Context, videoID, path string) (models.SceneSegment, error)
}

// Aligner runs the full segment-and-align pipeline.
type Aligner interface {
	AlignVideo(ctx context.Context, videoID, path string, steps []models.StepText) (*procedure.AlignmentResult, error)
}

type App struct {
	Storage       storage.Storage
	Videos        *VideoRegistry
	Segmenter     Segmenter
	Aligner       Aligner
	MaxUploadSize int64
	Logger        *zap.Logger
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".mp4" {
			app.writeError(w, http.StatusBadRequest, "only MP4 video files are allowed")
			return
		}
		contentType = "video/mp4"
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	filename, err := app.Storage.SaveVideo(file, header.Filename)
	if err != nil {
		app.Logger.Error("saving upload", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	video := models.NewVideo(title, filename, contentType, header.Size)
	app.Videos.Add(video)

	app.writeJSON(w, http.StatusCreated, map[string]string{
		"id":       video.ID,
		"filename": video.Filename,
	})
}

func (app *App) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.Videos.List())
}

func (app *App) VideoHandler(w http.ResponseWriter, r *http.Request) {
	video, ok := app.Videos.Get(chi.URLParam(r, "videoID"))
	if !ok {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	app.writeJSON(w, http.StatusOK, video)
}

// StreamHandler serves the stored video file with range support so players
// can seek.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	video, ok := app.Videos.Get(chi.URLParam(r, "videoID"))
	if !ok {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	file, err := app.Storage.OpenVideo(video.Filename)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video file missing")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", video.ContentType)
	http.ServeContent(w, r, video.Filename, video.UploadTime, file)
}

func (app *App) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, ok := app.Videos.Get(chi.URLParam(r, "videoID"))
	if !ok {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	if err := app.Storage.DeleteVideo(video.Filename); err != nil {
		app.Logger.Error("deleting video file", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	app.Videos.Remove(video.ID)

	w.WriteHeader(http.StatusNoContent)
}

func (app *App) SegmentHandler(w http.ResponseWriter, r *http.Request) {
	video, ok := app.Videos.Get(chi.URLParam(r, "videoID"))
	if !ok {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	path, err := app.Storage.Path(video.Filename)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video file missing")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	seg, err := app.Segmenter.Segment(ctx, video.ID, path)
	if err != nil {
		app.handlePipelineError(w, "segmenting video", err)
		return
	}
	app.writeJSON(w, http.StatusOK, seg)
}

type alignRequest struct {
	Steps []string `json:"steps"`
}

func (app *App) AlignHandler(w http.ResponseWriter, r *http.Request) {
	video, ok := app.Videos.Get(chi.URLParam(r, "videoID"))
	if !ok {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	var req alignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	steps := make([]models.StepText, len(req.Steps))
	for i, text := range req.Steps {
		steps[i] = models.StepText{Index: i, Text: text}
	}

	path, err := app.Storage.Path(video.Filename)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video file missing")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := app.Aligner.AlignVideo(ctx, video.ID, path, steps)
	if err != nil {
		app.handlePipelineError(w, "aligning video", err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

func (app *App) handlePipelineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, procedure.ErrNoSteps):
		app.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, segment.ErrNoVideo):
		app.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		app.writeError(w, http.StatusGatewayTimeout, "request cancelled")
	default:
		app.Logger.Error(op, zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Error("encoding response", zap.Error(err))
	}
}

func (app *App) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, map[string]string{"error": message})
}
