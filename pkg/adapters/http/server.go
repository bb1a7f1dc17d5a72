package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
)

//go:embed openapi.yaml
var rawSpec []byte

// Service defines the session operations exposed over HTTP.
// *pipeprep.Service satisfies it.
type Service interface {
	Datasources(ctx context.Context) ([]domain.DatasourceOption, error)
	Create(ctx context.Context) (*pipeprep.View, error)
	Get(ctx context.Context, id string) (*pipeprep.View, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	SelectDatasource(ctx context.Context, id, nodeID string) (*pipeprep.View, error)
	ChangeCredential(ctx context.Context, id, credentialID string) (*pipeprep.View, error)
	UpdateSources(ctx context.Context, id string, patch sourcestore.Patch) (*pipeprep.View, error)
	Upload(ctx context.Context, id, name, mimeType string, size int64, r io.Reader) (*pipeprep.View, error)
	Next(ctx context.Context, id string) (*pipeprep.View, error)
	Back(ctx context.Context, id string) (*pipeprep.View, error)
	LoadParams(ctx context.Context, id string) ([]domain.Variable, bool, error)
	Process(ctx context.Context, id string, inputs map[string]any) (string, error)
	Preview(outputs *domain.PreviewOutputs, limit int) (domain.PreviewChunks, error)
	PreviewLimit() int
}

var _ Service = (*pipeprep.Service)(nil)

// DefaultMaxUploadBytes bounds multipart uploads.
const DefaultMaxUploadBytes int64 = 15 << 20

// Server serves the preparation API.
type Server struct {
	Service Service
	Streams *StreamManager

	watcher        ports.Watchable
	gatherer       prometheus.Gatherer
	logger         *slog.Logger
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithStreams shares a StreamManager, typically the one registered as the
// service listener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithWatcher enables global reload events on /events.
func WithWatcher(w ports.Watchable) Option {
	return func(s *Server) { s.watcher = w }
}

// WithMetrics exposes the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer creates a Server for svc.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		Service:        svc,
		logger:         slog.Default(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(svc Service, opts ...Option) http.Handler {
	return NewServer(svc, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/datasources", s.ListDatasources)
	r.Post("/preview", s.Preview)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/datasources", s.ListDatasources)
			r.Put("/datasource", s.SelectDatasource)
			r.Put("/credential", s.ChangeCredential)
			r.Put("/sources", s.UpdateSources)
			r.Post("/files", s.UploadFile)
			r.Post("/next", s.Next)
			r.Post("/back", s.Back)
			r.Post("/params", s.LoadParams)
			r.Post("/process", s.Process)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>pipeprep API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetSwagger parses the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	return openapi3.NewLoader().LoadFromData(rawSpec)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "pipeprep-http",
		"version":     pipeprep.Version,
		"api_version": apiVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
