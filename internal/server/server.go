package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/imfeniljikadara/nexus-ai/internal/adapter/utils"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/handlers"
	"github.com/imfeniljikadara/nexus-ai/internal/middleware"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

type Server struct {
	server  *http.Server
	cfg     config.ServerConfig
	_logger *logger_i.Logger
}

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	StopWorkers      func()
	CloseServices    func()
}

// Routes mounts every endpoint on a fresh router.
func Routes(h *handlers.Handler, chain *middleware.Chain, cfg config.ServerConfig) http.Handler {
	r := utils.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", chain.Public(h.GetHandler))
	r.Post("/upload", chain.Wrap(h.PostUploadHandler))
	r.Get("/pdf/{id}", chain.Wrap(h.GetPdfHandler))
	r.Post("/chat", chain.Wrap(h.ChatHandler))
	r.Get("/chat/{id}/history", chain.Wrap(h.GetHistoryHandler))
	r.Get("/documents/{id}", chain.Wrap(h.GetDocumentHandler))
	r.Delete("/documents/{id}", chain.Wrap(h.DeleteDocumentHandler))
	r.Get("/status/{id}", chain.Wrap(h.GetStatusHandler))
	return r
}

func CreateServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		_logger: logger_i.NewLogger("Server"),
	}
}

func (s *Server) ListenAndServe() {
	s._logger.Info("Server is listening at", "address", s.cfg.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s._logger.Error("Server crashed", "error", err.Error(), "addr", s.cfg.ListenAddr)
	}
}

// ShutDownHandler waits for a signal, drains the http server, then the workers, then the services.
func (s *Server) ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	s._logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		s.server.SetKeepAlivesEnabled(false)

		if err := s.server.Shutdown(ctx); err != nil {
			s._logger.Error("Could not shutdown gracefully", "error", err)
		}

		shutdownParams.StopWorkers()
		shutdownParams.CloseServices()
		close(done)
	}()

	select {
	case <-done:
		s._logger.Info("Gracefully shut down")
		close(shutdownParams.StopExecution)
	case <-ctx.Done():
		s._logger.Info("Force Shut down")
		os.Exit(1)
	}
}
