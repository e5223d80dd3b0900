package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/edigeo-cadastre/ingest/internal/logger"
	"github.com/edigeo-cadastre/ingest/internal/sink"
)

var schemaValidateOnly bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or validate the target PostgreSQL schema",
	Long: `Create the target schema and every table named by the active table
config, including spatial indexes, without ingesting any archives.

With --validate, the table config is parsed and checked but no
statements are executed against the database.

Foreign-key constraints are applied immediately by this command, since
there is no concurrent ingest run whose table-creation order they need
to wait on.`,
	Run: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVar(&configPreset, "config-preset", "full", `Table config preset: "full", "light", or "bati"`)
	schemaCmd.Flags().StringVar(&configPath, "config", "", "Explicit JSON table config path, overrides --config-preset")
	schemaCmd.Flags().BoolVar(&dropSchemaFlg, "drop-schema", false, "Drop the target schema before creating it")
	schemaCmd.Flags().BoolVar(&dropTableFlg, "drop-table", false, "Drop each table before creating it")
	schemaCmd.Flags().BoolVar(&schemaValidateOnly, "validate", false, "Parse and validate the table config without touching the database")
}

func runSchema(cmd *cobra.Command, args []string) {
	log := logger.Get()
	cfg.ConfigPreset = configPreset
	cfg.ConfigPath = configPath
	cfg.DropSchema = dropSchemaFlg
	cfg.DropTable = dropTableFlg

	tableCfg, err := loadTableConfig()
	if err != nil {
		exitWithError("invalid table config", err)
	}
	log.Info("table config is valid", zap.Int("tables", len(tableCfg)))

	if schemaValidateOnly {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.ConnectionString())
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer pool.Close()

	if err := sink.EnsureSchema(ctx, pool, cfg.TargetSchema, cfg.DropSchema); err != nil {
		exitWithError("failed to create schema", err)
	}

	for kind, tc := range tableCfg {
		if err := sink.EnsureTable(ctx, pool, cfg.TargetSchema, tc, cfg.DropTable); err != nil {
			exitWithError("failed to create table for "+kind, err)
		}
	}

	if err := sink.EnsureJournalTable(ctx, pool, cfg.TargetSchema); err != nil {
		exitWithError("failed to create journal table", err)
	}

	for kind, tc := range tableCfg {
		if err := sink.ApplyForeignKeys(ctx, pool, cfg.TargetSchema, tc); err != nil {
			exitWithError("failed to apply foreign keys for "+kind, err)
		}
	}

	log.Info("schema ready", zap.String("schema", cfg.TargetSchema), zap.Int("tables", len(tableCfg)))
}
