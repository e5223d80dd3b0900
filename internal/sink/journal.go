package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// journalTable is unqualified; EnsureJournalTable always schema-qualifies it.
const journalTable = "ingest_journal"

// EnsureJournalTable creates the incremental journal table mapping
// archive path to content checksum, per spec.md §6. It is Postgres-
// backed rather than the teacher's flat state.txt
// (internal/replication/state.go's key=value format) because the
// journal must be visible to every worker through the shared
// connection pool, not just the process that wrote it.
func EnsureJournalTable(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	archive_path text PRIMARY KEY,
	checksum text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, pgIdent(schema), pgIdent(journalTable))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("creating journal table: %w", err)
	}
	return nil
}

// ChecksumReader computes the content checksum the journal stores,
// reading r to exhaustion. The orchestrator passes a reader over the
// same archive bytes it hands to C1, so the checksum covers exactly
// the bytes C1 decodes.
func ChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("checksumming archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Seen reports whether archivePath was already ingested at this exact
// checksum, letting the orchestrator skip an archive that hasn't
// changed since the journal was last updated for it.
func Seen(ctx context.Context, pool *pgxpool.Pool, schema, archivePath, checksum string) (bool, error) {
	var recorded string
	sql := fmt.Sprintf("SELECT checksum FROM %s.%s WHERE archive_path = $1", pgIdent(schema), pgIdent(journalTable))
	err := pool.QueryRow(ctx, sql, archivePath).Scan(&recorded)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading journal entry for %s: %w", archivePath, err)
	}
	return recorded == checksum, nil
}

// Record upserts the journal entry for archivePath after a successful
// ingest, so a subsequent run over an unchanged archive can skip it.
func Record(ctx context.Context, pool *pgxpool.Pool, schema, archivePath, checksum string) error {
	sql := fmt.Sprintf(`INSERT INTO %s.%s (archive_path, checksum, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (archive_path) DO UPDATE SET checksum = EXCLUDED.checksum, updated_at = now()`,
		pgIdent(schema), pgIdent(journalTable))
	if _, err := pool.Exec(ctx, sql, archivePath, checksum); err != nil {
		return fmt.Errorf("recording journal entry for %s: %w", archivePath, err)
	}
	return nil
}
