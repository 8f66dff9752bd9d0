package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/clearpath-legal/riskline/internal/analysis"
	"github.com/clearpath-legal/riskline/internal/api"
	"github.com/clearpath-legal/riskline/internal/config"
	"github.com/clearpath-legal/riskline/internal/index"
	"github.com/clearpath-legal/riskline/internal/ingest"
	"github.com/clearpath-legal/riskline/internal/llm"
	"github.com/clearpath-legal/riskline/internal/retrieval"
	"github.com/clearpath-legal/riskline/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the riskline server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running riskline server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show riskline system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "riskline.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// indexDialFunc selects the vector index backend from config. The embedded
// SQLite backend shares the storage database; the remote backend expects an
// OpenSearch-compatible endpoint with bearer auth.
func indexDialFunc(cfg config.Config, store *storage.Store) (index.DialFunc, error) {
	switch cfg.Index.Backend {
	case "", "sqlite":
		return index.DialSQLite(store.DB(), ""), nil
	case "remote":
		source := func(ctx context.Context) (string, error) {
			if tok := os.Getenv("RISKLINE_INDEX_TOKEN"); tok != "" {
				return tok, nil
			}
			return cfg.Server.Token, nil
		}
		timeout := time.Duration(cfg.Index.TimeoutSeconds) * time.Second
		return index.DialRemote(cfg.Index.RemoteURL, cfg.Index.IndexName, source, timeout), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "riskline version %s\n", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("riskline is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("riskline is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check local model server readiness.
	llmClient := llm.New(cfg.Ollama.BaseURL, 120*time.Second)
	if !llmClient.IsRunning(ctx) {
		return fmt.Errorf("model server not reachable at %s — is ollama running?", cfg.Ollama.BaseURL)
	}

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the analysis pipeline.
	dial, err := indexDialFunc(cfg, store)
	if err != nil {
		return err
	}
	session := index.NewSessionClient(dial)
	embedder := retrieval.NewEmbedder(llmClient, cfg.Ollama.EmbedModel)
	coordinator := ingest.NewCoordinator(store, embedder, session, slog.Default())
	retriever := retrieval.NewRetriever(embedder, session)
	generator := llm.NewGenerator(llmClient, cfg.Ollama.GenModel)
	analyzer := analysis.NewAnalyzer(coordinator, retriever, store, generator, slog.Default())

	handler := api.NewAppHandler(api.AppDeps{
		Store:          store,
		Analyzer:       analyzer,
		Token:          cfg.Server.Token,
		Logger:         slog.Default(),
		DefaultProfile: cfg.Analysis.DefaultProfile,
		DefaultTopK:    cfg.Analysis.DefaultTopK,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Analyzer:  analyzer,
		Retriever: retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start HTTP server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "riskline listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("riskline is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop riskline (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to riskline (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Gen model", "%s", cfg.Ollama.GenModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Index backend", "%s", cfg.Index.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
