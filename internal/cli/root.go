// Package cli implements the insight-sync CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/config"
	"github.com/rcliao/insight-sync/internal/engine"
	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/gateway/httpgw"
	"github.com/rcliao/insight-sync/internal/insight"
	"github.com/rcliao/insight-sync/internal/logging"
	"github.com/rcliao/insight-sync/internal/store"
)

var (
	configPath  string
	dbPath      string
	baseURL     string
	backendFlag string
	formatFlag  string
	verbose     bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "insight-sync",
	Short: "Keep a conversation and its preference insights in sync with the server",
	Long: "Collects user preference insights for a conversation, reconciles optimistic local edits " +
		"with the server, and recovers transparently when the server forgets the session.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.insight-sync/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path for the local backend (default: $INSIGHT_SYNC_DB or ~/.insight-sync/insights.db)")
	RootCmd.PersistentFlags().StringVarP(&baseURL, "url", "u", "", "Server URL for the http backend")
	RootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "", "Backend: local or http")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

// loadConfig reads the config file and layers the persistent flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

func openSQLite(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, store.Options{SessionTTL: cfg.TTL()})
}

// openBackend returns the session store the client talks to: the SQLite file
// in-process, or a remote server.
func openBackend(cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return httpgw.New(cfg.BaseURL, httpgw.Options{Timeout: cfg.Timeout}), nil
	default:
		return openSQLite(cfg)
	}
}

// client bundles what the conversation commands share.
type client struct {
	cfg     *config.Config
	backend store.Store
	engine  *engine.Engine
	state   string
}

func openClient() (*client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	eng := engine.New(backend, engine.Options{
		Renderer: insight.Renderer{Currency: cfg.Currency},
		Logger:   newLogger(cfg),
	})
	c := &client{cfg: cfg, backend: backend, engine: eng, state: config.StatePath()}
	eng.OnSessionReplaced(func(oldID, newID string) {
		if err := config.SaveState(c.state, newID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: save state: %v\n", err)
		}
	})
	return c, nil
}

// resume adopts the session remembered from the last run, or creates one.
func (c *client) resume(ctx context.Context) (string, error) {
	st, err := config.LoadState(c.state)
	if err != nil {
		return "", err
	}
	if st.SessionID == "" {
		return c.engine.EnsureValidSession(ctx)
	}
	return c.engine.ResumeSession(ctx, st.SessionID)
}

func (c *client) Close() error {
	return c.backend.Close()
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	var verr *gateway.ValidationError
	if errors.As(err, &verr) {
		for _, e := range verr.Entries {
			fmt.Fprintf(os.Stderr, "  rejected: %q (%s)\n", e.Text, e.Priority)
		}
	}
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
