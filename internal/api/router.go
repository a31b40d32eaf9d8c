package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/videos", func(r chi.Router) {
		r.Post("/", app.UploadHandler)
		r.Get("/", app.ListVideosHandler)
		r.Get("/{videoID}", app.VideoHandler)
		r.Get("/{videoID}/stream", app.StreamHandler)
		r.Delete("/{videoID}", app.DeleteVideoHandler)
		r.Post("/{videoID}/segment", app.SegmentHandler)
		r.Post("/{videoID}/align", app.AlignHandler)
	})

	return r
}
