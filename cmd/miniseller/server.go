package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
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
	"golang.org/x/sync/errgroup"

	"github.com/Israelam72/mini-seller-console/internal/api"
	"github.com/Israelam72/mini-seller-console/internal/config"
	"github.com/Israelam72/mini-seller-console/internal/conversion"
	"github.com/Israelam72/mini-seller-console/internal/persistence"
	"github.com/Israelam72/mini-seller-console/internal/query"
	"github.com/Israelam72/mini-seller-console/internal/seed"
	"github.com/Israelam72/mini-seller-console/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the miniseller server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running miniseller server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show miniseller status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

// pidFile records the running server's process id in the data directory.
type pidFile string

func pidFileIn(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "miniseller.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (p pidFile) read() (int, error) {
	raw, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

func (p pidFile) remove() {
	_ = os.Remove(string(p))
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// openBackend opens the storage backend named by cfg. The returned closer
// releases it.
func openBackend(ctx context.Context, cfg config.StorageConfig) (persistence.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return persistence.NewMemoryBackend(), io.NopCloser(nil), nil
	case config.BackendRedis:
		rb, err := storage.OpenRedis(ctx, storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis: %w", err)
		}
		return rb, rb, nil
	default:
		st, err := storage.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		return st, st, nil
	}
}

func seedSource(cfg config.SeedConfig) persistence.LeadSource {
	if cfg.Path != "" {
		return seed.File(cfg.Path)
	}
	return seed.Embedded()
}

type app struct {
	store      *persistence.Store
	query      *query.Service
	conversion *conversion.Workflow
}

func newApp(cfg config.Config, backend persistence.Backend, logger *slog.Logger) app {
	if logger == nil {
		logger = slog.Default()
	}
	store := persistence.New(backend, logger)
	policy := query.NewSimulated(cfg.QueryLatency(), cfg.Query.FailureRate, nil)
	return app{
		store: store,
		query: query.NewService(store, seedSource(cfg.Seed), policy,
			query.WithCollation(cfg.CollationTag()),
			query.WithRollbackOnTransient(cfg.Query.RollbackOnTransient),
			query.WithLogger(logger),
		),
		conversion: conversion.NewWorkflow(store,
			conversion.WithLegacyPartialSuccess(cfg.Conversion.LegacyPartialSuccess),
			conversion.WithLogger(logger),
		),
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "miniseller version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	pid := pidFileIn(cfg.Storage.DataDir)
	if serverHealthy(context.Background(), clientFor(&cfg, 2*time.Second)) {
		if n, err := pid.read(); err == nil {
			printWarning("miniseller is already running (PID %d)", n)
			return fmt.Errorf("server already running (PID %d)", n)
		}
		printWarning("miniseller is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := pid.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pid.remove()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closer, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	a := newApp(cfg, backend, logger)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Query:      a.query,
			Conversion: a.conversion,
			Store:      a.store,
			Token:      cfg.API.Token,
			Logger:     logger,
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printStep("miniseller listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Query:      a.query,
			Conversion: a.conversion,
			Store:      a.store,
		}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pf := pidFileIn(cfg.Storage.DataDir)
	pid, err := pf.read()
	if err != nil {
		printError("miniseller is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop miniseller (PID %d): %v", pid, err)
		pf.remove()
		return err
	}

	printSuccess("Sent stop signal to miniseller (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := clientFor(&cfg, 2*time.Second)

	running := serverHealthy(ctx, client)
	if running {
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Storage", "%s", storageLabel(cfg.Storage))
	printStatus("Latency", "%s", cfg.Query.Latency)
	printStatus("Failure rate", "%.0f%%", cfg.Query.FailureRate*100)

	if running {
		if page, err := listLeads(ctx, client, listOptions{PageSize: 1}); err == nil {
			printStatus("Leads", "%d", page.Meta.Count)
		}
		if page, err := listOpportunities(ctx, client, listOptions{PageSize: 1}); err == nil {
			printStatus("Opportunities", "%d", page.Meta.Count)
		}
	}
	if cfg.Storage.Backend == config.BackendSQLite {
		printCollections(ctx, cfg.Storage.DataDir)
	}
	return nil
}

func printCollections(ctx context.Context, dataDir string) {
	db, err := storage.Open(dataDir)
	if err != nil {
		printWarning("cannot open database: %v", err)
		return
	}
	defer db.Close()

	cols, err := db.ListCollections(ctx)
	if err != nil {
		printWarning("listing collections: %v", err)
		return
	}
	for _, c := range cols {
		printStatus("  "+c.Key, "%d bytes, updated %s", c.Size, c.UpdatedAt.Local().Format(time.DateTime))
	}
}

func serverHealthy(ctx context.Context, c *apiClient) bool {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func storageLabel(cfg config.StorageConfig) string {
	switch cfg.Backend {
	case config.BackendRedis:
		return fmt.Sprintf("redis at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	case config.BackendMemory:
		return "memory (not persisted)"
	default:
		return "sqlite in " + cfg.DataDir
	}
}
