// ABOUTME: Entry point for the wagate server
// ABOUTME: Links chat accounts per user and auto-replies to inbound messages via AI providers

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/skelter/wagate/internal/ai"
	"github.com/skelter/wagate/internal/auth"
	"github.com/skelter/wagate/internal/config"
	"github.com/skelter/wagate/internal/httpapi"
	"github.com/skelter/wagate/internal/session"
	"github.com/skelter/wagate/internal/store"
	"github.com/skelter/wagate/internal/transport"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
                             _
 __      ____ _  __ _  __ _ | |_ ___
 \ \ /\ / / _' |/ _' |/ _' || __/ _ \
  \ V  V / (_| | (_| | (_| || ||  __/
   \_/\_/ \__,_|\__, |\__,_| \__\___|
                |___/
`

// getConfigPath returns the path to the wagate config file.
// Priority: WAGATE_CONFIG env var > XDG_CONFIG_HOME/wagate/wagate.yaml > ~/.config/wagate/wagate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WAGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "wagate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "wagate", "wagate.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: wagate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the wagate server")
		fmt.Println("  init     Create a starter config file")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting wagate",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	dialer, err := newDialer(cfg.Chat.Transport)
	if err != nil {
		return err
	}

	gateway := ai.NewGateway(logger)
	manager := session.NewManager(dialer, st, gateway, logger,
		session.WithRestartDelay(cfg.Chat.RestartDelay),
		session.WithHistoryLimit(cfg.Chat.HistoryWindow),
	)
	defer manager.Shutdown()

	// Bring previously linked sessions back up
	if err := manager.Resume(ctx); err != nil {
		logger.Error("session resume failed", "error", err)
	}

	tokens := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	api := httpapi.New(st, manager, gateway, tokens, cfg.Auth.TokenTTL, logger)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const starterConfig = `server:
  http_addr: ":8080"

database:
  path: "wagate.db"

auth:
  jwt_secret: "${WAGATE_JWT_SECRET}"
  token_ttl: "24h"

chat:
  transport: "fake"
  restart_delay: "1500ms"
  history_window: 10

logging:
  level: "info"
  format: "text"
`

func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("Wrote starter config to %s\n", path)
	return nil
}

func runHealth(ctx context.Context) error {
	addr := os.Getenv("WAGATE_ADDR")
	if addr == "" {
		addr = "http://localhost:8080"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		color.Red("✗ unreachable: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success {
		color.Red("✗ unhealthy (status %d)", resp.StatusCode)
		os.Exit(1)
	}
	color.Green("✓ healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// newDialer returns the dialer for the chat protocol client named in
// chat.transport. The protocol implementation lives behind
// transport.Dialer; "fake" runs sessions against the in-memory transport,
// which exercises pairing, status, and the message pipeline end to end.
func newDialer(name string) (transport.Dialer, error) {
	switch name {
	case "fake":
		return transport.NewFakeDialer(), nil
	default:
		return nil, fmt.Errorf("unknown chat.transport %q", name)
	}
}
