package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crbook/internal/config"
	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/server"
	"github.com/MeKo-Tech/crbook/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for document extraction",
	Long: `Start an HTTP server that extracts document fields over a REST and
WebSocket API.

The server provides the following endpoints:
  POST /upload/{doctype}  - Stage an image for the session
  POST /process/{doctype} - Extract the staged image
  POST /clear/{doctype}   - Drop the staged image
  POST /extract           - Upload and extract in one request
  GET  /ws                - Extraction with progress updates
  GET  /health            - Health check endpoint
  GET  /metrics           - Prometheus metrics

Examples:
  crbook serve
  crbook serve --port 8080 --vision
  crbook serve --host 0.0.0.0 --redis-addr redis:6379`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		withVision, _ := cmd.Flags().GetBool("vision")

		srv, err := buildServer(cmd.Context(), cfg, withVision)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		return runServer(cfg, srv)
	},
}

// applyServeFlags copies changed flags over the configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	s := &cfg.Server
	if flags.Changed("host") {
		s.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		s.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		s.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		s.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("default-method") {
		s.DefaultMethod, _ = flags.GetString("default-method")
	}
	if flags.Changed("include-image") {
		s.IncludeImage, _ = flags.GetBool("include-image")
	}
	if flags.Changed("rate-limit-enabled") {
		s.RateLimitEnabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		s.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		s.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		s.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		s.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}
	if flags.Changed("redis-addr") {
		s.Redis.Addr, _ = flags.GetString("redis-addr")
		s.Redis.Enabled = s.Redis.Addr != ""
	}
	if flags.Changed("engine") {
		cfg.OCR.Engine, _ = flags.GetString("engine")
	}
}

// buildServer creates a local pipeline per document type, the optional
// vision backend and the upload store. Types whose pipeline cannot be built
// are served by vision only.
func buildServer(ctx context.Context, cfg *config.Config, withVision bool) (*server.Server, error) {
	extractors := make(map[doctype.Type]server.Extractor)
	for _, t := range doctype.All() {
		p, err := newPipeline(cfg, t)
		if err != nil {
			slog.Warn("Local pipeline unavailable", "doctype", t, "error", err)
			continue
		}
		extractors[t] = p
		slog.Info("Local pipeline ready", "doctype", t, "engine", p.EngineName())
	}
	closeAll := func() {
		for _, e := range extractors {
			_ = e.Close()
		}
	}

	sc := server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigin:    cfg.Server.CORSOrigin,
		MaxUploadMB:   int64(cfg.Server.MaxUploadMB),
		TimeoutSec:    cfg.Server.TimeoutSec,
		DefaultMethod: cfg.Server.DefaultMethod,
		IncludeImage:  cfg.Server.IncludeImage,
		Version:       version.Version,
		Extractors:    extractors,
	}

	if withVision || cfg.Server.DefaultMethod == server.MethodVision {
		v, err := newVisionExtractor(cfg.Vision)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create vision client: %w", err)
		}
		sc.Vision = v
	}
	if len(extractors) == 0 && sc.Vision == nil {
		return nil, errors.New("no local pipeline could be built; check the OCR models or start with --vision")
	}
	if len(extractors) == 0 && sc.DefaultMethod == server.MethodLocal {
		sc.DefaultMethod = server.MethodVision
	}

	ttl := time.Duration(cfg.Server.SessionTTLMin) * time.Minute
	if cfg.Server.Redis.Enabled {
		rc := cfg.Server.Redis
		store, err := server.NewRedisStore(ctx, server.RedisOptions{
			Addr:      rc.Addr,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
			TTL:       ttl,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		slog.Info("Staging uploads in redis", "addr", rc.Addr)
		sc.Store = store
	} else {
		sc.Store = server.NewMemoryStore(ttl)
	}

	if cfg.Server.RateLimitEnabled {
		sc.RateLimiter = server.NewRateLimiter(
			cfg.Server.RequestsPerMinute,
			cfg.Server.RequestsPerHour,
			cfg.Server.MaxRequestsPerDay,
			cfg.Server.MaxDataPerDay,
		)
	}

	srv, err := server.NewServer(sc)
	if err != nil {
		closeAll()
		_ = sc.Store.Close()
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}
	return srv, nil
}

func runServer(cfg *config.Config, srv *server.Server) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Extraction runs inside the handler.
		WriteTimeout: timeout + 10*time.Second,
	}

	go func() {
		slog.Info("Starting extraction server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "extraction timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("default-method", server.MethodLocal, "method used when a request names none: local or vision")
	serveCmd.Flags().Bool("include-image", true, "return the base64 image with results")
	serveCmd.Flags().String("engine", config.EnginePaddle, "OCR engine: paddle or tesseract")
	serveCmd.Flags().Bool("vision", false, "enable the vision method")
	serveCmd.Flags().String("redis-addr", "", "stage uploads in redis at this address")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum data processed per day per client (bytes)")
}
