// ABOUTME: Entry point for the loom-relay AI conversation server
// ABOUTME: Provides serve, health and token subcommands

package main

import (
	"context"
	"encoding/json"
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

	"github.com/fatih/color"

	"github.com/loomchat/ai-relay/internal/api"
	"github.com/loomchat/ai-relay/internal/auth"
	"github.com/loomchat/ai-relay/internal/config"
	"github.com/loomchat/ai-relay/internal/genai"
	"github.com/loomchat/ai-relay/internal/relay"
	"github.com/loomchat/ai-relay/internal/store"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _
| | ___   ___  _ __ ___
| |/ _ \ / _ \| '_ ' _ \
| | (_) | (_) | | | | | |
|_|\___/ \___/|_| |_| |_|  relay
`

// getConfigPath returns the path to the relay config file.
// Priority: LOOM_CONFIG env var > XDG_CONFIG_HOME/loom/relay.yaml > ~/.config/loom/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("LOOM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "loom", "relay.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: loom-relay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                Start the relay server")
		fmt.Println("  health               Check relay server liveness")
		fmt.Println("  token --user ID      Mint a development JWT for a user")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger configures the default slog logger from config.
func setupLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	setupLogger(cfg)
	logger := slog.Default()

	color.Cyan(banner)
	color.White("loom-relay %s", version)
	color.White("config: %s", configPath)
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	gen := genai.NewOpenAIClient(genai.Config{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		RequestTimeout: cfg.Provider.RequestTimeout,
		HealthTimeout:  cfg.Provider.HealthTimeout,
	})

	broadcaster := relay.NewBroadcaster(logger)
	defer broadcaster.Close()

	rel := relay.New(st, gen, broadcaster, logger)
	if cfg.Relay.HistoryWindow > 0 {
		rel.SetHistoryWindow(cfg.Relay.HistoryWindow)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	server := api.New(st, rel, gen, broadcaster, logger, cfg.IsDevelopment())

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.Handler(verifier),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runHealth(ctx context.Context) error {
	addr := os.Getenv("LOOM_ADDR")
	if addr == "" {
		addr = "http://localhost:8080"
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, addr+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.Red("relay unreachable: %v", err)
		return err
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	if body["status"] == "ok" {
		color.Green("relay healthy at %s", addr)
		return nil
	}
	color.Red("relay unhealthy: %v", body)
	return fmt.Errorf("unexpected health status %q", body["status"])
}

// runToken mints a development JWT so the relay can be exercised without
// the surrounding application's identity layer.
func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "user ID for the sub claim")
	expiry := fs.Duration("expires", 24*time.Hour, "token lifetime")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("--user is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*userID, *expiry)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}
