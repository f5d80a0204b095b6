package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/sonar-hub/internal/agent"
	"github.com/ashureev/sonar-hub/internal/api"
	"github.com/ashureev/sonar-hub/internal/config"
	"github.com/ashureev/sonar-hub/internal/healthrpc"
	"github.com/ashureev/sonar-hub/internal/identity"
	"github.com/ashureev/sonar-hub/internal/metrics"
	"github.com/ashureev/sonar-hub/internal/middleware"
	"github.com/ashureev/sonar-hub/internal/render"
	"github.com/ashureev/sonar-hub/internal/session"
	"github.com/ashureev/sonar-hub/internal/simulate"
	"github.com/ashureev/sonar-hub/internal/store"
	"github.com/ashureev/sonar-hub/web"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("Failed to load configuration", "error", err)
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "chat_enabled", cfg.ChatEnabled())
	if !cfg.ChatEnabled() {
		slog.Warn("No completion API key configured, chat is disabled")
	}
	if cfg.SonarDataAPI.BaseURL != "" {
		slog.Info("Sonar data API configured but not used", "base_url", cfg.SonarDataAPI.BaseURL)
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(parent); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected")

	// Transcripts do not survive a restart.
	reset, err := repo.ResetChatSessions(parent)
	if err != nil {
		slog.Error("Failed to reset chat sessions", "error", err)
		return err
	}
	slog.Info("Chat sessions reset", "deleted", reset)

	sessions := session.NewManager()

	m, err := metrics.New()
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		return err
	}
	if err := m.RegisterGauge("sonarhub_active_sessions", "Number of live browser sessions.", func() float64 {
		return float64(sessions.Len())
	}); err != nil {
		return err
	}

	renderer := render.NewRenderer(cfg.RenderCacheTTL)

	// Initialize the chat assistant. Without an API key the service stays
	// disabled and every turn is answered with an error.
	var completer agent.Completer
	if cfg.ChatEnabled() {
		client, clientErr := agent.NewPerplexityClient(agent.ClientConfig{
			APIKey:  cfg.Perplexity.APIKey,
			BaseURL: cfg.Perplexity.BaseURL,
			Model:   cfg.Perplexity.Model,
			Timeout: cfg.Chat.Timeout,
		})
		if clientErr != nil {
			slog.Error("Failed to initialize completion client", "error", clientErr)
			return clientErr
		}
		completer = client
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		return err
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	chatCfg := agent.DefaultHandlerConfig()
	chatCfg.RateLimit = cfg.Chat.RateLimit
	chatCfg.RateWindow = cfg.Chat.RateWindow
	chatCfg.TurnTimeout = cfg.Chat.Timeout
	chatCfg.AllowedOrigin = cfg.FrontendURL
	chatCfg.IsDev = cfg.IsDevelopment()
	agentHandler := agent.NewHandler(agent.NewService(completer), repo, sessions, m, conversationLogger, chatCfg)
	defer agentHandler.Close()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, renderer, simulate.New(), m, api.Options{
		ChatEnabled:    cfg.ChatEnabled(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	healthHandler := api.NewHealthHandler(repo, cfg.ChatEnabled())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Everything else needs an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		baseHandler.RegisterRoutes(r)
		agentHandler.RegisterRoutes(r)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start TTL worker.
	ttlDone := session.StartTTLWorker(ctx, sessions, repo, cfg.SessionTTL, session.DefaultSweepInterval, func(key session.Key) {
		renderer.ForgetScope(api.HeatmapCacheKey(key.UserID, key.SessionID))
		agentHandler.ForgetSession(key.UserID, key.SessionID)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			stop()
			return fmt.Errorf("listen grpc: %w", err)
		}
		hs := healthrpc.New(repo, cfg.ChatEnabled())
		g.Go(func() error {
			return hs.Serve(gctx, lis, 30*time.Second)
		})
	}

	// Wait for a shutdown signal or a server failure.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	stop()
	<-ttlDone
	if err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

// allowedOrigins returns the CORS allow list. Development accepts any origin.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
