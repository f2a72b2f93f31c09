// Package cli implements the visitor-store CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/config"
	"github.com/rcliao/visitor-store/internal/logging"
	"github.com/rcliao/visitor-store/internal/visitor"
)

var (
	cfgFile    string
	dbPath     string
	backend    string
	formatFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "visitor-store",
	Short: "Consent-aware visitor storage",
	Long: `A CLI over the visitor storage layer: consent-gated, namespaced, TTL-aware
records with session, journey, interest and banner-timing helpers.
SQLite-backed by default; memory and Redis backends are available.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $HOME/.visitor-store.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $VISITOR_STORE_DB_PATH or ~/.visitor-store/profile.db)")
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Backend: sqlite, memory or redis")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")
}

// loadConfig layers flags over the environment, the config file and the
// defaults.
func loadConfig() (config.Config, error) {
	v := config.NewViper()
	flags := RootCmd.PersistentFlags()
	v.BindPFlag("db_path", flags.Lookup("db"))
	v.BindPFlag("backend", flags.Lookup("backend"))
	v.BindPFlag("log_level", flags.Lookup("log-level"))
	return config.Load(v, cfgFile)
}

func openContext(cmd *cobra.Command) (*visitor.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return visitor.Open(cmd.Context(), cfg, log)
}

// mustOpen opens the visitor context or exits.
func mustOpen(cmd *cobra.Command) *visitor.Context {
	vc, err := openContext(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	return vc
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func textOutput() bool { return formatFlag == "text" }

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
