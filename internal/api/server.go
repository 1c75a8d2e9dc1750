package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/controller"
	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/session"
	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
)

type Service interface {
	State(ctx context.Context) (session.Snapshot, error)
	Annotations(ctx context.Context) ([]annotation.Annotation, error)
	ToggleMode(ctx context.Context, mode string) (session.Result, error)
	Reset(ctx context.Context) (session.Result, error)
	SelectAnnotation(ctx context.Context, index int) (session.Result, error)
	DeleteSelected(ctx context.Context) (session.Result, error)
	CopySelected(ctx context.Context) (session.Result, error)
	SwitchSymbol(ctx context.Context, symbol string) (session.Result, error)
	ListSurfaces(ctx context.Context) ([]controller.SurfaceInfo, error)
	InjectEvent(ctx context.Context, surfaceID string, ev controller.SurfaceEvent) (session.Snapshot, error)
	SetSurfaceData(ctx context.Context, surfaceID string, points []geometry.Point) (int, error)
	RenderSurface(ctx context.Context, surfaceID string) ([]byte, error)

	TakeSnapshot(ctx context.Context, surfaceID, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	SnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Option mounts optional handlers next to the API.
type Option func(chi.Router)

// WithStream serves the state event stream at /api/v1/events.
func WithStream(h http.Handler) Option {
	return func(r chi.Router) { r.Method(http.MethodGet, "/api/v1/events", h) }
}

// WithMetrics serves Prometheus metrics at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(r chi.Router) { r.Method(http.MethodGet, "/metrics", h) }
}

// WithChartPage serves the browser chart page under /chart/.
func WithChartPage(h http.Handler) Option {
	return func(r chi.Router) { r.Mount("/chart", h) }
}

type surfaceIDInput struct {
	SurfaceID string `path:"surface_id" doc:"Surface (pane) id, see GET /api/v1/surfaces"`
}

type resultOutput struct {
	Body session.Result
}

func NewServer(svc Service, opts ...Option) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Chart Annotator API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(streamDocsHTML)); err != nil {
			slog.Debug("stream docs response write failed", "error", err)
		}
	})

	registerSessionHandlers(api, svc)
	registerSurfaceHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	for _, opt := range opts {
		opt(router)
	}
	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	var coded *errcode.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case errcode.Validation:
			return huma.Error400BadRequest(coded.Message)
		case errcode.SurfaceNotFound, errcode.NotFound:
			return huma.Error404NotFound(coded.Message)
		case errcode.Unsupported:
			return huma.Error501NotImplemented(coded.Message)
		case errcode.SessionClosed:
			return huma.Error503ServiceUnavailable(coded.Message)
		case errcode.EvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case errcode.APIUnavailable, errcode.CDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
