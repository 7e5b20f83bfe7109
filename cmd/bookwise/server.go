package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/bookwise/internal/api"
	"github.com/kalambet/bookwise/internal/config"
	"github.com/kalambet/bookwise/internal/retention"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation server (foreground)",
	Long: `Run the recommendation server in the foreground.

By default the HTTP API is served on server.host:server.port. With --mcp the
same pipeline is exposed as an MCP server over stdio instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpMode)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "serve MCP over stdio instead of HTTP")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "bookwise.pid")
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

func serverAddr(cfg config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func runServer(mcpMode bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer installLogger(cfg.Log.Level)()
	zap.L().Info("starting bookwise", zap.String("version", version), zap.Bool("mcp", mcpMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			zap.L().Warn("closing services", zap.Error(err))
		}
	}()

	pruneCtx, stopPruning := context.WithCancel(ctx)
	defer stopPruning()
	go retention.NewPruner(svc.store, cfg.RetentionPeriod(), retention.DefaultInterval).Run(pruneCtx)

	if mcpMode {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(svc.mcpDeps()))
		zap.L().Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}

	addr := serverAddr(cfg)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + addr + "/health"); err == nil {
		resp.Body.Close()
		return fmt.Errorf("server already running on %s", addr)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(svc.apiDeps()),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("bookwise is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("stopping bookwise (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to bookwise (PID %d)", pid)
	return nil
}

type healthReport struct {
	Status     string `json:"status"`
	Recommend  string `json:"recommend"`
	Reason     string `json:"reason"`
	Categories int    `json:"categories"`
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := newAPIClientFor(cfg)
	client.httpClient.Timeout = 2 * time.Second

	var health healthReport
	resp, err := client.get(context.Background(), "/health")
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case decodeJSON(resp, &health) != nil:
		printStatus("Server", "error")
	default:
		printStatus("Server", "running on %s", serverAddr(cfg))
		if health.Recommend == "ready" {
			printStatus("Recommend", "ready (%d categories)", health.Categories)
		} else {
			printStatus("Recommend", "unavailable: %s", health.Reason)
		}
	}

	printStatus("LLM", "%s at %s", cfg.LLM.Provider, cfg.LLM.BaseURL)
	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)
	printStatus("Catalog", "%s", cfg.Catalog.DBPath)
	printStatus("Index", "%s", cfg.IndexPath())
	if cfg.Aladin.TTBKey == "" {
		printStatus("Aladin", "no TTB key (fallback disabled)")
	} else {
		printStatus("Aladin", "configured")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// printJSON writes v indented to stdout.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
