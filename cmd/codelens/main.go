package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/mcp"
	"github.com/codelens/codelens/internal/service"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("CodeLens MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", corpus.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", corpus.DriverName)
		os.Exit(0)
	}

	// .env holds credentials like OPENAI_API_KEY; absence is not an error.
	_ = godotenv.Load()

	// stdout carries MCP protocol frames, so all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("CodeLens MCP server starting",
		"version", version,
		"build_mode", corpus.BuildMode,
		"sqlite_driver", corpus.DriverName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := mcp.NewServer(ctx, optionsFromEnv(logger))
	if err != nil {
		logger.Error("failed to create MCP server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// optionsFromEnv assembles server options from the environment.
func optionsFromEnv(logger *slog.Logger) mcp.Options {
	svc := service.DefaultConfig()
	if python := os.Getenv("CODELENS_PYTHON"); python != "" {
		svc.Python = python
	}
	svc.Script = os.Getenv("CODELENS_SERVICE_SCRIPT")
	svc.EnvDir = os.Getenv("CODELENS_SERVICE_ENV_DIR")
	svc.Requirements = os.Getenv("CODELENS_SERVICE_REQUIREMENTS")

	dim := 0
	if v := os.Getenv("CODELENS_VECTOR_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dim = n
		}
	}

	return mcp.Options{
		DataDir:          os.Getenv("CODELENS_DATA_DIR"),
		StoreBackend:     os.Getenv("CODELENS_STORE"),
		SearchBackend:    os.Getenv("CODELENS_SEARCH"),
		QdrantAddr:       os.Getenv("CODELENS_QDRANT_ADDR"),
		QdrantCollection: os.Getenv("CODELENS_QDRANT_COLLECTION"),
		VectorDimension:  dim,
		Service:          svc,
		Logger:           logger,
	}
}

// logLevel reads CODELENS_LOG_LEVEL, defaulting to info.
func logLevel() slog.Level {
	switch os.Getenv("CODELENS_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
