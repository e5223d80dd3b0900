// Package sink implements C9: synthesizing the target schema from a
// table config and batch-loading transformed rows into it, following
// the teacher's internal/middle (EnsureTables/CreateIndexes) and
// internal/loader (temp-table COPY-then-INSERT) idioms.
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/edigeo-cadastre/ingest/internal/config"
	"github.com/edigeo-cadastre/ingest/internal/logger"
)

// EnsureSchema creates the target schema, optionally dropping it
// first when dropSchema is set (spec.md §6's --drop-schema flag).
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schema string, dropSchema bool) error {
	log := logger.Get()
	if dropSchema {
		log.Info("dropping schema", zap.String("schema", schema))
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(schema))); err != nil {
			return fmt.Errorf("dropping schema %s: %w", schema, err)
		}
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgIdent(schema))); err != nil {
		return fmt.Errorf("creating schema %s: %w", schema, err)
	}
	return nil
}

// EnsureTable creates one table from its config, following spec.md
// §4.9's DDL-synthesis contract: every field's pgtype, an optional
// serial gid, an optional geometry + geomhash column, and the table's
// own (non-foreign-key) constraints. Foreign keys are deferred to
// ApplyForeignKeys so a relation table can reference a FeatureCollection
// table regardless of creation order.
func EnsureTable(ctx context.Context, pool *pgxpool.Pool, schema string, tc config.TableConfig, dropTable bool) error {
	log := logger.Get()
	fullName := fmt.Sprintf("%s.%s", pgIdent(schema), pgIdent(tc.Table))

	if dropTable {
		log.Info("dropping table", zap.String("table", tc.Table))
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", fullName)); err != nil {
			return fmt.Errorf("dropping table %s: %w", tc.Table, err)
		}
	}

	var cols []string
	if tc.InsertGid {
		cols = append(cols, "gid SERIAL")
	}
	for _, f := range tc.Fields {
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(f.DB), f.PgType))
	}
	if tc.GeomField != nil {
		cols = append(cols, fmt.Sprintf("%s geometry", pgIdent(tc.GeomField.Name)))
		if tc.HashGeom {
			cols = append(cols, "geomhash text")
		}
	}
	cols = append(cols, tc.PgConstraint...)

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", fullName, strings.Join(cols, ",\n\t"))
	log.Info("creating table", zap.String("table", tc.Table))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("creating table %s: %w", tc.Table, err)
	}

	if tc.GeomField != nil {
		idxName := fmt.Sprintf("%s_%s_gix", tc.Table, tc.GeomField.Name)
		idxSQL := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
			pgIdent(idxName), fullName, pgIdent(tc.GeomField.Name),
		)
		if _, err := pool.Exec(ctx, idxSQL); err != nil {
			return fmt.Errorf("creating spatial index on %s: %w", tc.Table, err)
		}
	}

	return nil
}

// ApplyForeignKeys executes a table's deferred foreign-key statements
// after every table in the config has been created, substituting the
// "$schema$" placeholder config authors use in place of a literal
// schema name (see config.TableConfig's NUMVOIE_PARCELLE preset).
// A constraint already present in the schema under the same name is
// left as it is. SUBDFISC_PARCELLE carries none, per spec.md §9's
// resolved Open Question — ApplyForeignKeys is simply a no-op for it.
func ApplyForeignKeys(ctx context.Context, pool *pgxpool.Pool, schema string, tc config.TableConfig) error {
	for _, fk := range tc.PgFkConstraint {
		stmt := strings.ReplaceAll(fk, "$schema$", schema)
		name := fmt.Sprintf("%s_%x", tc.Table, hashFK(stmt))
		var exists bool
		if err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_constraint c JOIN pg_namespace n ON n.oid = c.connamespace WHERE n.nspname = $1 AND c.conname = $2)",
			schema, name,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking foreign key on %s: %w", tc.Table, err)
		}
		if exists {
			continue
		}
		sql := fmt.Sprintf(
			"ALTER TABLE %s.%s ADD CONSTRAINT %s %s",
			pgIdent(schema), pgIdent(tc.Table), pgIdent(name), stmt,
		)
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("adding foreign key to %s: %w", tc.Table, err)
		}
	}
	return nil
}

// pgIdent quotes a SQL identifier; schema/table/column names here are
// always sourced from trusted config, not user input, but quoting
// keeps mixed-case or reserved-word names (e.g. a column literally
// named "id") safe regardless.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// hashFK derives a short, stable constraint-name suffix from the
// constraint body, so re-running ApplyForeignKeys against an
// already-provisioned schema finds each constraint under the same name
// and skips it instead of adding it twice.
func hashFK(stmt string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(stmt); i++ {
		h ^= uint32(stmt[i])
		h *= 16777619
	}
	return h
}
