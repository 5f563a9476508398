// Package httpserver manages server creation and api routing.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/pet-ledger/internal/ledgerdelivery"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

const defaultShutdownTimeout = 10 * time.Second

// Server holds the ledger engine, handlers router and configuration.
type Server struct {
	Engine *gin.Engine
	Config configpkg.Config
	Ledger *ledgerservice.Service
	logger zerolog.Logger
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated ledger engine and routes.
func New(repo ledgerservice.Repo, publisher ledgerservice.Publisher, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	ledger := ledgerservice.New(repo, publisher)
	ledgerHandler := ledgerdelivery.NewHandler(ledger)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := ledgerdelivery.RegisterValidators(v); err != nil {
			return nil, errors.New("cannot register ledger validators")
		}
	}

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.ActorMiddleware())

	ledgerHandler.Register(engine)

	server := &Server{
		Engine: engine,
		Config: config,
		Ledger: ledger,
		logger: logger,
	}

	return server, nil
}

// Run serves HTTP on Config.ServerAddress until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	timeout := s.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              s.Config.ServerAddress,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("address", srv.Addr).Msg("ledger server has started")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.logger.Info().Msg("shutting down ledger server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
