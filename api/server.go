package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
)

// RuleStore persists the rules managed through the API.
type RuleStore interface {
	CreateRule(ctx context.Context, rule entity.Rule) error
	GetRule(ctx context.Context, id uuid.UUID) (entity.Rule, error)
	ListRules(ctx context.Context) ([]entity.Rule, error)
}

type server struct {
	cfg    Config
	logger *slog.Logger
	rules  RuleStore
}

func NewServer(cfg Config, logger *slog.Logger, rules RuleStore) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if rules == nil {
		return nil, errors.New("api server requires a rule store")
	}

	return &server{
		cfg:    cfg,
		logger: logger,
		rules:  rules,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)

	mux.HandleFunc("POST /api/rules", s.createRuleHandler)
	mux.HandleFunc("GET /api/rules", s.listRulesHandler)
	mux.HandleFunc("GET /api/rules/{id}", s.getRuleHandler)
	mux.HandleFunc("POST /api/rules/combine", s.combineRulesHandler)
	mux.HandleFunc("POST /api/rules/evaluate", s.evaluateRuleHandler)
	mux.HandleFunc("POST /api/rules/{id}/evaluate", s.evaluateStoredRuleHandler)

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux)))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:     s.cfg.Addr,
		Handler:  s.routes(),
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.shutdownTimeout())
		defer cancel()

		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if !errors.Is(serverErr, http.ErrServerClosed) {
		return serverErr
	}

	if err := <-shutdownErr; err != nil {
		s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		return err
	}

	return nil
}
