// Package cmd wires the recommendation engine into a thin CLI. All decision
// logic lives in pkg/scorer; commands only parse flags, build contexts, and
// render results.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/history"
	"github.com/razornet-sec/smartlist/internal/knowledge"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/internal/telemetry"
	"github.com/razornet-sec/smartlist/pkg/scorer"
)

var (
	cfg       *config.Config
	log       *logger.Logger
	provider  *knowledge.Provider
	selStore  core.SelectionStore
	fileStore *history.FileStore
	tel       core.Telemetry
	engine    *scorer.Engine

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "smartlist",
	Short: "Context-aware wordlist recommendation engine",
	Long: `SmartList - Context-Aware Wordlist Recommendation

Given a detected technology, port, and service fingerprint, SmartList picks
a small, diverse, high-value set of wordlists from a large catalog. It
avoids recommendation clustering by tracking its own history (anonymized,
append-only) and penalizing over-recommended lists.

COMMANDS:
  smartlist recommend --tech wordpress --port 443   # Get ranked wordlists
  smartlist audit --days 30                         # Diversity/entropy audit
  smartlist history stats                           # Selection history summary
  smartlist history cleanup --max-age-days 30       # Prune old partitions
  smartlist kb status                               # Knowledge base availability`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		return initRuntime(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux.
			_ = log.Sync()
		}
		if selStore != nil {
			if err := selStore.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to close history store: %v\n", err)
			}
		}
		if tel != nil {
			if err := tel.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to shut down telemetry: %v\n", err)
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.smartlist.yaml)")

	// Logging
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "SMARTLIST_LOG_LEVEL")
	viper.BindEnv("logger.format", "SMARTLIST_LOG_FORMAT")

	// Knowledge base resources
	rootCmd.PersistentFlags().String("tech-db", "", "path to the technology database JSON")
	rootCmd.PersistentFlags().String("port-db", "", "path to the port classification JSON")
	rootCmd.PersistentFlags().String("catalog", "", "path to the wordlist catalog JSON")
	viper.BindPFlag("knowledge.tech_db_path", rootCmd.PersistentFlags().Lookup("tech-db"))
	viper.BindPFlag("knowledge.port_db_path", rootCmd.PersistentFlags().Lookup("port-db"))
	viper.BindPFlag("knowledge.catalog_path", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindEnv("knowledge.tech_db_path", "SMARTLIST_TECH_DB")
	viper.BindEnv("knowledge.port_db_path", "SMARTLIST_PORT_DB")
	viper.BindEnv("knowledge.catalog_path", "SMARTLIST_CATALOG")

	// History store
	rootCmd.PersistentFlags().String("history-backend", "file", "history backend (file, postgres)")
	rootCmd.PersistentFlags().String("history-dir", "", "history directory (default ~/.smartlist/history)")
	viper.BindPFlag("history.backend", rootCmd.PersistentFlags().Lookup("history-backend"))
	viper.BindPFlag("history.dir", rootCmd.PersistentFlags().Lookup("history-dir"))
	viper.BindEnv("history.backend", "SMARTLIST_HISTORY_BACKEND")
	viper.BindEnv("history.dir", "SMARTLIST_HISTORY_DIR")

	// Postgres backend
	rootCmd.PersistentFlags().String("db-dsn", "", "PostgreSQL connection string for the postgres history backend")
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	viper.BindEnv("database.dsn", "SMARTLIST_DATABASE_DSN", "DATABASE_URL")

	// Scoring
	rootCmd.PersistentFlags().Int("max-results", 5, "maximum wordlists per recommendation")
	viper.BindPFlag("scoring.max_results", rootCmd.PersistentFlags().Lookup("max-results"))

	// Telemetry (environment only, never flags)
	viper.BindEnv("telemetry.enabled", "SMARTLIST_TELEMETRY_ENABLED")
	viper.BindEnv("telemetry.endpoint", "SMARTLIST_TELEMETRY_ENDPOINT")

	defaults := config.DefaultConfig()
	viper.SetDefault("scoring.huge_lines", defaults.Scoring.HugeLines)
	viper.SetDefault("scoring.large_lines", defaults.Scoring.LargeLines)
	viper.SetDefault("scoring.small_lines", defaults.Scoring.SmallLines)
	viper.SetDefault("scoring.huge_penalty", defaults.Scoring.HugePenalty)
	viper.SetDefault("scoring.large_penalty", defaults.Scoring.LargePenalty)
	viper.SetDefault("scoring.small_bonus", defaults.Scoring.SmallBonus)
	viper.SetDefault("scoring.credential_penalty", defaults.Scoring.CredentialPenalty)
	viper.SetDefault("scoring.subdomain_penalty", defaults.Scoring.SubdomainPenalty)
	viper.SetDefault("scoring.credential_cap", defaults.Scoring.CredentialCap)
	viper.SetDefault("scoring.category_cap", defaults.Scoring.CategoryCap)
	viper.SetDefault("history.window_days", defaults.History.WindowDays)
	viper.SetDefault("history.max_records", defaults.History.MaxRecords)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.max_connections", defaults.Database.MaxConnections)
	viper.SetDefault("database.max_idle_conns", defaults.Database.MaxIdleConns)
	viper.SetDefault("database.conn_max_lifetime", "1h")
	viper.SetDefault("telemetry.service_name", "smartlist")
	viper.SetDefault("telemetry.exporter_type", "otlp")
	viper.SetDefault("telemetry.endpoint", "localhost:4317")
	viper.SetDefault("telemetry.sample_rate", 1.0)
	viper.SetDefault("logger.output_paths", []string{"stdout"})
}

func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SMARTLIST")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.SetConfigFile(filepath.Join(home, ".smartlist.yaml"))
		// The default config file is optional.
		_ = viper.ReadInConfig()
	}

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	defaults := config.DefaultConfig()
	if cfg.Knowledge.TechDBPath == "" {
		cfg.Knowledge.TechDBPath = defaults.Knowledge.TechDBPath
	}
	if cfg.Knowledge.PortDBPath == "" {
		cfg.Knowledge.PortDBPath = defaults.Knowledge.PortDBPath
	}
	if cfg.Knowledge.CatalogPath == "" {
		cfg.Knowledge.CatalogPath = defaults.Knowledge.CatalogPath
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaults.Database.DSN
	}
	return nil
}

func initRuntime(ctx context.Context) error {
	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	var err error
	log, err = logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err = telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		log.Warnw("Telemetry disabled", "error", err)
		tel = core.NoopTelemetry{}
	}

	loader := knowledge.NewLoader(cfg.Knowledge, log)
	kb, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	provider = knowledge.NewProvider(kb)

	selStore, err = history.NewStore(cfg.History, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	if fs, ok := selStore.(*history.FileStore); ok {
		fileStore = fs
	}

	engine = scorer.NewEngine(provider, selStore, tel, cfg.Scoring, cfg.History, log)
	return nil
}
