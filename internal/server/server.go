package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"med/dispatch/internal/config"
	"med/dispatch/internal/database"
	"med/dispatch/internal/dispatch"
	"med/dispatch/internal/store/memory"
	"med/dispatch/internal/store/postgres"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Server wires configuration, dependencies and HTTP routing together.
type Server struct {
	cfg       config.Config
	log       zerolog.Logger
	engine    *dispatch.Engine
	notifier  *dispatch.Notifier
	pool      *pgxpool.Pool
	validate  *validator.Validate
	authMw    *AuthMiddleware
	startedAt time.Time
}

// New instantiates the HTTP server, opens the selected entity store and
// prepares shared dependencies. The notifier is installed as a store commit
// hook so subscribers observe changes in commit order.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	notifier := dispatch.NewNotifier(
		dispatch.WithBuffer(cfg.Dispatch.EventBuffer),
		dispatch.WithDropHandler(dispatch.ObserveDroppedEvent),
	)

	var (
		st   dispatch.Store
		pool *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case "memory":
		st = memory.NewStore(memory.WithCommitHook(notifier.Publish))
	case "postgres":
		var err error
		pool, err = database.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		st, err = postgres.NewStore(ctx, pool, memory.WithCommitHook(notifier.Publish))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	engine := dispatch.NewEngine(st, log, dispatch.WithHoldDuration(cfg.Dispatch.HoldDuration))

	var authMw *AuthMiddleware
	if cfg.Keycloak.Enabled {
		var err error
		authMw, err = NewAuthMiddleware(ctx, cfg.Keycloak, log)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("init auth middleware: %w", err)
		}
	} else {
		log.Warn().Msg("authentication disabled, all v1 routes are open")
	}

	srv := &Server{
		cfg:       cfg,
		log:       log,
		engine:    engine,
		notifier:  notifier,
		pool:      pool,
		validate:  newValidator(),
		authMw:    authMw,
		startedAt: time.Now().UTC(),
	}

	return srv, nil
}

// Engine exposes the allocation engine, mainly for tests and seeding.
func (s *Server) Engine() *dispatch.Engine { return s.engine }

// Close releases auth and database resources.
func (s *Server) Close() {
	if s.authMw != nil {
		s.authMw.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Run starts the hold-expiry monitor and the HTTP server, blocking until the
// context is cancelled or an unrecoverable error occurs.
func (s *Server) Run(ctx context.Context) error {
	monitor := dispatch.StartExpiryMonitor(ctx, s.engine, s.log, s.cfg.Dispatch.MonitorInterval)

	httpServer := &http.Server{
		Addr:         s.cfg.HTTP.Address,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	s.log.Info().Str("addr", s.cfg.HTTP.Address).Msg("http server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-monitor.Done()
	return nil
}

var vehicleNumberRe = regexp.MustCompile(`^[A-Z0-9-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("vehicle_number", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return vehicleNumberRe.MatchString(val)
	})
	return v
}
