package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/edigeo-cadastre/ingest/internal/config"
	"github.com/edigeo-cadastre/ingest/internal/logger"
	"github.com/edigeo-cadastre/ingest/internal/orchestrator"
)

var (
	millesimeStr  string
	outputEPSG    int
	depPolicyStr  string
	depBoundary   string
	configPreset  string
	configPath    string
	dropSchemaFlg bool
	dropTableFlg  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source-dir-or-archive>",
	Short: "Decode EDIGEO archives and load them into PostgreSQL/PostGIS",
	Long: `Walk a directory tree (or a single archive) for EDIGEO cadastral
exchange archives, decode each one, transform its features according
to the active table config, and load the results into PostGIS.

Archives already present in the ingest journal at their current
checksum are skipped. Foreign-key constraints are applied once, after
every archive in the run has completed.`,
	Args: cobra.ExactArgs(1),
	Run:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&millesimeStr, "millesime", "m", "", "Cadastral release date, YYYY-MM (required)")
	ingestCmd.Flags().IntVarP(&outputEPSG, "output-epsg", "E", 4326, "Target projection EPSG (4326 or 3857)")
	ingestCmd.Flags().StringVar(&depPolicyStr, "dep-policy", "auto", `Department resolution: "auto" (spatial), "fromFile", or a literal code`)
	ingestCmd.Flags().StringVar(&depBoundary, "dep-boundary", "", "Path to department boundary reference set (required for --dep-policy=auto)")
	ingestCmd.Flags().StringVar(&configPreset, "config-preset", "full", `Table config preset: "full", "light", or "bati"`)
	ingestCmd.Flags().StringVar(&configPath, "config", "", "Explicit JSON table config path, overrides --config-preset")
	ingestCmd.Flags().BoolVar(&dropSchemaFlg, "drop-schema", false, "Drop the target schema before ingesting")
	ingestCmd.Flags().BoolVar(&dropTableFlg, "drop-table", false, "Drop each target table before creating it")
}

func runIngest(cmd *cobra.Command, args []string) {
	log := logger.Get()
	cfg.SourcePath = args[0]
	cfg.OutputEPSG = outputEPSG
	cfg.DepPolicy = config.ParseDepartmentPolicy(depPolicyStr)
	cfg.DepBoundary = depBoundary
	cfg.ConfigPreset = configPreset
	cfg.ConfigPath = configPath
	cfg.DropSchema = dropSchemaFlg
	cfg.DropTable = dropTableFlg
	if verbose {
		cfg.Verbosity = 2
	}

	millesime, err := config.ParseMillesime(millesimeStr)
	if err != nil {
		exitWithError("invalid millesime", err)
	}
	cfg.Millesime = millesime

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	tableCfg, err := loadTableConfig()
	if err != nil {
		exitWithError("failed to load table config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.ConnectionString())
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer pool.Close()

	log.Info("starting ingest",
		zap.String("source", cfg.SourcePath),
		zap.String("millesime", cfg.Millesime.Raw),
		zap.String("schema", cfg.TargetSchema),
		zap.Int("output_epsg", cfg.OutputEPSG),
		zap.String("dep_policy", cfg.DepPolicy.Mode),
		zap.Int("workers", cfg.Workers),
	)

	start := time.Now()

	stats, err := orchestrator.Run(ctx, cfg, pool, tableCfg)
	if err != nil {
		exitWithError("ingest failed", err)
	}

	if err := orchestrator.ApplyDeferredForeignKeys(ctx, pool, cfg.TargetSchema, tableCfg); err != nil {
		exitWithError("failed to apply foreign keys", err)
	}

	elapsed := time.Since(start)
	log.Info("ingest complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("total", stats.Total),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("failed", stats.Failed),
		zap.Int64("rows_loaded", stats.RowsLoaded),
	)

	for _, f := range stats.Failures {
		log.Warn("archive failed", zap.String("archive", f.Archive), zap.Error(f.Err))
	}

	if stats.Failed > 0 {
		exitWithError(fmt.Sprintf("%d of %d archives failed", stats.Failed, stats.Total), nil)
	}
}

func loadTableConfig() (config.TableConfigSet, error) {
	if cfg.ConfigPath != "" {
		return config.Load(cfg.ConfigPath)
	}
	return config.Preset(cfg.ConfigPreset)
}
