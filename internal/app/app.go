package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/candidly/backend/internal/apiclient"
	"github.com/candidly/backend/internal/config"
	"github.com/candidly/backend/internal/db"
	"github.com/candidly/backend/internal/handlers"
	"github.com/candidly/backend/internal/httpserver"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/metrics"
	"github.com/candidly/backend/internal/middleware"
	"github.com/candidly/backend/internal/videoupload"
)

// Run bootstraps the Candidly backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, or upload-video")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "upload-video":
		return runUploadVideo(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	metrics.Register()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(cleanupCtx); err != nil {
			logger.Warn("dependency cleanup failed", "error", err)
		}
	}()

	verifier, err := buildVerifier(cfg, outboundClient(cfg))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", metrics.Middleware(mux))

	handler := middleware.Authenticate(verifier)(root)
	handler = middleware.RequestLogger(logger)(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(handler)

	srv := httpserver.New(cfg.AppPort, handler, cfg.HTTPWriteTimeout)

	logger.Info("starting http server", "port", cfg.AppPort, "storage", cfg.ObjectStore.Backend, "env", cfg.Environment)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// runUploadVideo sends a recording through a deployed backend the same way the
// browser does: presigned slot, PUT, playback URL, profile reference.
func runUploadVideo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload-video", flag.ContinueOnError)
	token := fs.String("token", os.Getenv("CANDIDLY_ACCESS_TOKEN"), "access token of the uploading user")
	file := fs.String("file", "", "path to the recorded video")
	apiBase := fs.String("api", "", "backend base URL (defaults to the configured environment)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("upload-video: -file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel))

	base := *apiBase
	if base == "" {
		base = cfg.APIBaseURL()
	}
	client := outboundClient(cfg)

	verifier, err := buildVerifier(cfg, client)
	if err != nil {
		return err
	}
	session, err := verifier.Verify(ctx, *token)
	if err != nil {
		return fmt.Errorf("verify access token: %w", err)
	}

	api, err := apiclient.New(base, *token, client)
	if err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	uploader := &videoupload.Client{Slots: api, HTTP: client, Reader: api, Profiles: api}
	result, err := uploader.Upload(ctx, session.UserID, f)
	if err != nil {
		return err
	}

	fmt.Printf("uploaded %s\n", result.Key)
	if result.PlaybackURL != "" {
		fmt.Printf("playback %s\n", result.PlaybackURL)
	}
	return nil
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command == "down" {
		return errors.New("down migrations are not supported")
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	dir, err := absDir(cfg.MigrationDir)
	if err != nil {
		return err
	}

	conn, closeConn, err := acquire(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeConn()

	migrator := db.Migrator{Dir: dir, Logger: logging.New(os.Stdout, cfg.LogLevel)}

	if command == "status" {
		status, err := migrator.Status(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range status {
			mark := " "
			if m.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, m.Version)
		}
		return nil
	}

	applied, err := migrator.Up(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("no migrations to apply")
	}
	return nil
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir, err := absDir(cfg.SeedDir)
	if err != nil {
		return err
	}

	conn, closeConn, err := acquire(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeConn()

	name, err := db.Seed(ctx, conn, dir, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("applied seed %s\n", name)
	return nil
}

// acquire opens a pool and holds one connection for a maintenance command.
func acquire(ctx context.Context, databaseURL string) (*pgxpool.Conn, func(), error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, func() {
		conn.Release()
		pool.Close()
	}, nil
}

func absDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
