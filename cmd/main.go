package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/config"
	"vessel-cbm-monitor/internal/db"
	"vessel-cbm-monitor/internal/ingest"
	"vessel-cbm-monitor/internal/logging"
	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/parser"
	"vessel-cbm-monitor/internal/query"
	"vessel-cbm-monitor/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	timezone   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cbm-monitor",
		Short: "Vessel CBM Monitor - condition-monitoring reading ingestion and analysis",
		Long: `A CLI tool for ingesting condition-based-maintenance spreadsheet exports
from a vessel fleet, normalizing them into readings, and analysing vibration,
RPM and current trends with SQLite-backed persistence and REST API access.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (\":memory:\" for no persistence)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $CBM_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "Location for zone-less spreadsheet timestamps")

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(equipmentCmd())
	rootCmd.AddCommand(pairedCmd())
	rootCmd.AddCommand(trendCmd())
	rootCmd.AddCommand(rawCmd())
	rootCmd.AddCommand(missingCmd())
	rootCmd.AddCommand(optionsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg         config.Config
	logger      *zap.Logger
	kv          db.KV
	store       *store.Store
	persistence *db.Persistence
	normalizer  *parser.Normalizer
}

// loadApp reads configuration, opens the KV and restores the saved state.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if timezone != "" {
		cfg.Timezone = timezone
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	var kv db.KV
	if cfg.Database == ":memory:" {
		kv = db.NewMemoryKV()
	} else {
		database, err := db.New(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		kv = database
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		kv:          kv,
		store:       store.New(),
		persistence: db.NewPersistence(kv, logger),
	}
	a.normalizer = parser.NewNormalizer(parser.NewResolver(loc), cfg.NormalizerOptions(), a.store.Parameters())
	a.persistence.Load(ctx, a.store)
	metrics.SetStoreReadings(a.store.Len())
	return a, nil
}

func (a *app) pipeline(opts ...ingest.Option) *ingest.Pipeline {
	return ingest.New(a.store, a.normalizer, a.logger, opts...)
}

func (a *app) engine() *query.Engine {
	return query.NewEngine(a.store)
}

func (a *app) Close() {
	a.kv.Close()
	a.logger.Sync()
}

// withApp runs fn with a loaded app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
