// ABOUTME: Entry point for the guildpost-syncd sync daemon
// ABOUTME: Runs the offline sync engine, drains the queue, reports queue status

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/guildpost/guildpost/internal/config"
	"github.com/guildpost/guildpost/internal/engine"
	"github.com/guildpost/guildpost/internal/store"
	"github.com/guildpost/guildpost/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the syncd config file.
// Priority: GUILDPOST_CONFIG env var > XDG_CONFIG_HOME/guildpost/syncd.yaml > ~/.config/guildpost/syncd.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GUILDPOST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "syncd.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "guildpost", "syncd.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: guildpost-syncd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Run the sync daemon")
		fmt.Println("  status     Show sync queue state")
		fmt.Println("  cleanup    Purge expired cache entries and old terminal queue items")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "status":
		err = runStatus(ctx)
	case "cleanup":
		err = runCleanup(ctx)
	case "version":
		fmt.Println(version)
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
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogging(cfg.Logging)
	slog.SetDefault(logger)

	profile, err := loadProfile()
	if err != nil {
		return fmt.Errorf("loading backend profile: %w", err)
	}
	baseURL, authToken := resolveBackend(cfg, profile)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	eng := engine.New(st, newSender(baseURL, authToken, cfg.API.Timeout), engineOptions(cfg)...)
	defer eng.Close()

	sweep := cfg.Sync.SweepInterval
	if sweep <= 0 {
		sweep = time.Hour
	}
	eng.StartSweeper(sweep)

	logger.Info("guildpost-syncd started",
		"version", version, "db", cfg.Database.Path, "backend", baseURL)

	// Connectivity probe: the engine only drains while online, so poll the
	// backend and feed transitions into SetOnline.
	go watchConnectivity(ctx, eng, baseURL, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func engineOptions(cfg *config.Config) []engine.Option {
	var opts []engine.Option
	if cfg.Sync.MaxRetries > 0 {
		opts = append(opts, engine.WithMaxRetries(cfg.Sync.MaxRetries))
	}
	if cfg.Sync.DefaultTTL > 0 {
		opts = append(opts, engine.WithDefaultTTL(cfg.Sync.DefaultTTL))
	}
	if cfg.Sync.Retention > 0 {
		opts = append(opts, engine.WithRetention(cfg.Sync.Retention))
	}
	if cfg.Sync.BackoffBase > 0 {
		opts = append(opts, engine.WithBackoff(engine.NewBackoff(cfg.Sync.BackoffBase, cfg.Sync.BackoffMax, 0.25)))
	}
	return opts
}

func newSender(baseURL, authToken string, timeout time.Duration) engine.Sender {
	var opts []transport.Option
	if timeout > 0 {
		opts = append(opts, transport.WithTimeout(timeout))
	}
	if authToken != "" {
		opts = append(opts, transport.WithHeader("Authorization", "Bearer "+authToken))
	}
	return transport.NewHTTPSender(baseURL, opts...)
}

// watchConnectivity polls the backend and toggles the engine's online state.
func watchConnectivity(ctx context.Context, eng *engine.Engine, baseURL string, logger *slog.Logger) {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	probe := func() {
		online := probeBackend(ctx, client, baseURL)
		if online != eng.Online() {
			logger.Info("connectivity changed", "online", online)
		}
		eng.SetOnline(online)
	}

	probe()
	for {
		select {
		case <-ticker.C:
			probe()
		case <-ctx.Done():
			return
		}
	}
}

func probeBackend(ctx context.Context, client *http.Client, baseURL string) bool {
	if baseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

func runStatus(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	counts := map[string]int{}
	for _, status := range []string{
		store.QueueStatusPending, store.QueueStatusProcessing,
		store.QueueStatusCompleted, store.QueueStatusFailed,
	} {
		n, err := st.CountQueueItems(ctx, status)
		if err != nil {
			return fmt.Errorf("counting %s items: %w", status, err)
		}
		counts[status] = n
	}

	fmt.Printf("%s %d\n", color.YellowString("pending:   "), counts[store.QueueStatusPending])
	fmt.Printf("%s %d\n", color.CyanString("processing:"), counts[store.QueueStatusProcessing])
	fmt.Printf("%s %d\n", color.GreenString("completed: "), counts[store.QueueStatusCompleted])
	fmt.Printf("%s %d\n", color.RedString("failed:    "), counts[store.QueueStatusFailed])
	return nil
}

func runCleanup(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogging(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	// Construction runs one sweep; the engine owns store closing.
	eng := engine.New(st, transport.NewHTTPSender(cfg.API.BaseURL), engineOptions(cfg)...)
	if err := eng.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	fmt.Println(color.GreenString("cleanup complete"))
	return nil
}

// setupLogging configures slog per config: json for machines, colored text
// for humans.
func setupLogging(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
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
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
