package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/classifier"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/cvbackend"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/pipeline"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/server"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("soroban-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("soroban-mcp - MCP server for reading soroban (abacus) images")
			fmt.Println()
			fmt.Println("Usage: soroban-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  SOROBAN_LOG_LEVEL=debug      Enable debug logging")
			fmt.Println("  SOROBAN_CONFIG=<file>        YAML pipeline configuration")
			fmt.Println("  SOROBAN_BACKEND=purego       Skip the OpenCV backend even when built in")
			fmt.Println("  ONNXRUNTIME_LIB=<file>       Path to the ONNX Runtime shared library")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	level := slog.LevelInfo
	if os.Getenv("SOROBAN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
		log.Printf("Soroban MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := pipeline.DefaultFileConfig()
	if path := os.Getenv("SOROBAN_CONFIG"); path != "" {
		var err error
		if cfg, err = pipeline.LoadConfigFile(path); err != nil {
			log.Fatalf("Config error: %v", err)
		}
	}

	clf, err := classifier.New(cfg.Classifier, cfg.Tensor, logger)
	if err != nil {
		log.Fatalf("Classifier error: %v", err)
	}

	opts := append(cfg.Options(),
		pipeline.WithBackend(selectBackend(logger)),
		pipeline.WithClassifier(clf),
		pipeline.WithLogger(logger),
	)
	p := pipeline.New(opts...)
	defer p.Close()

	server.Version = Version
	srv := server.New(p, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// selectBackend prefers OpenCV when the binary was built with it.
func selectBackend(logger *slog.Logger) vision.Backend {
	if os.Getenv("SOROBAN_BACKEND") != "purego" {
		b, err := cvbackend.New()
		if err == nil {
			logger.Info("using image backend", "backend", b.Name())
			return b
		}
		logger.Debug("opencv backend unavailable", "error", err)
	}
	return imaging.NewBackend()
}
