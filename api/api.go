// Package api exposes the HTTP surface: job submission and inspection,
// progress polling and streaming (SSE and WebSocket), and challenge
// solution intake. Owner identity is carried in the X-Owner-ID header;
// authentication proper sits in front of this service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Safi643133/ai-immigration-services-sub003/orchestrator"
	"github.com/Safi643133/ai-immigration-services-sub003/stream"
)

// Header names the API reads.
const (
	HeaderOwnerID      = "X-Owner-ID"
	HeaderWorkerSecret = "X-Worker-Secret"
)

// Server wires the orchestration service and the stream broker into an
// http.Handler.
type Server struct {
	svc          *orchestrator.Service
	broker       *stream.Broker
	logger       *slog.Logger
	workerSecret string
	defaultCodec Codec
}

// Option configures a Server.
type Option func(*Server)

// WithWorkerSecret sets the shared secret workers present on the
// worker-update endpoint. Without it the endpoint rejects everything.
func WithWorkerSecret(secret string) Option {
	return func(s *Server) { s.workerSecret = secret }
}

// WithDefaultCodec sets the stream codec used when a client does not
// negotiate one.
func WithDefaultCodec(c Codec) Option {
	return func(s *Server) { s.defaultCodec = c }
}

// NewServer creates the API server.
func NewServer(svc *orchestrator.Service, broker *stream.Broker, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:          svc,
		broker:       broker,
		logger:       logger,
		defaultCodec: &JSONCodec{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the fully assembled router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.createJob)
		r.Get("/jobs", s.listJobs)

		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Post("/cancel", s.cancelJob)
			r.Post("/worker-update", s.workerUpdate)
			r.Get("/progress", s.progress)
			r.Get("/progress/stream", s.progressStream)
			r.Get("/challenge", s.activeChallenge)
			r.Post("/challenge/solution", s.solveChallenge)
		})

		r.Get("/stream", s.handleStream)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerRef extracts the caller's owner identity.
func ownerRef(r *http.Request) string {
	return r.Header.Get(HeaderOwnerID)
}
