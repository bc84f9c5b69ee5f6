package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/plugin/ai"
	apiv1 "github.com/hrygo/conceptlens/server/router/api/v1"
	"github.com/hrygo/conceptlens/server/runner/embedding"
	"github.com/hrygo/conceptlens/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer        *echo.Echo
	embeddingService  ai.EmbeddingService
	runnerCancelFuncs []context.CancelFunc
}

// NewServer wires the HTTP API. A missing or invalid embedding configuration
// is logged and the server runs without relationship ranking.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Store:   store,
		Profile: profile,
	}

	embeddingService, err := ai.NewEmbeddingServiceFromConfig(ai.NewConfigFromProfile(profile))
	if err != nil {
		slog.Warn("embedding provider disabled", "error", err)
		embeddingService = nil
	}
	s.embeddingService = embeddingService

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = apiv1.HTTPErrorHandler
	echoServer.Use(echomiddleware.Recover())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "Database unavailable\n")
		}
		return c.String(http.StatusOK, "Service ready.\n")
	})

	apiV1Service := apiv1.NewAPIV1Service(profile, store, embeddingService)
	apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)

	s.StartBackgroundRunners(ctx)

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("server started", "address", address, "embedding", s.embeddingService != nil)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	for _, cancelFunc := range s.runnerCancelFuncs {
		if cancelFunc != nil {
			cancelFunc()
		}
	}

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("server stopped properly")
}

// StartBackgroundRunners starts the embedding backfill when a provider is configured.
func (s *Server) StartBackgroundRunners(ctx context.Context) {
	if s.embeddingService == nil {
		return
	}
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancelFuncs = append(s.runnerCancelFuncs, cancel)

	runner := embedding.NewRunner(s.Store, s.embeddingService)
	go runner.Run(runnerCtx)
	slog.Info("embedding runner started")
}
