// Package index maintains a small SQLite catalog of which folders carry
// which tags. The metadata itself lives in per-folder sidecar files; the
// index only accelerates reverse lookups ("every folder tagged X"), which
// supply the candidate set for a global tag rename. It is best-effort by
// contract: callers log index failures and proceed, the sidecars remain the
// source of truth.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver registration

	"github.com/pictree/pictree/internal/pathutil"
)

// Index wraps the catalog database. Sole-writer: one connection, WAL mode.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("index: creating data directory: %w", err)
	}

	// DSN pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("tag index opened", slog.String("db_path", dbPath))

	return &Index{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert replaces the indexed tag set for a folder. Tags are stored folded
// so lookups are case-insensitive regardless of sidecar casing.
func (ix *Index) Upsert(ctx context.Context, folder string, tags []string) error {
	key := pathutil.Fold(folder)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM folder_tags WHERE path = ?`, key); err != nil {
		return fmt.Errorf("index: clearing tags for %s: %w", folder, err)
	}

	for _, tag := range tags {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO folder_tags (path, tag) VALUES (?, ?)`,
			key, strings.ToLower(tag),
		)
		if err != nil {
			return fmt.Errorf("index: inserting tag %q for %s: %w", tag, folder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: committing tag update: %w", err)
	}

	return nil
}

// Remove drops a folder (and, with its descendants, anything below it) from
// the index, mirroring a deleted subtree.
func (ix *Index) Remove(ctx context.Context, folder string) error {
	key := pathutil.Fold(folder)

	_, err := ix.db.ExecContext(ctx,
		`DELETE FROM folder_tags WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		key, escapeLike(key)+`/%`,
	)
	if err != nil {
		return fmt.Errorf("index: removing %s: %w", folder, err)
	}

	return nil
}

// PathsWithTag returns every indexed folder carrying tag (case-insensitive),
// sorted by path.
func (ix *Index) PathsWithTag(ctx context.Context, tag string) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT path FROM folder_tags WHERE tag = ? ORDER BY path`,
		strings.ToLower(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("index: querying tag %q: %w", tag, err)
	}
	defer rows.Close()

	var paths []string

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("index: scanning row: %w", err)
		}

		paths = append(paths, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating rows: %w", err)
	}

	return paths, nil
}

// Tags returns the indexed tags for one folder, sorted.
func (ix *Index) Tags(ctx context.Context, folder string) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT tag FROM folder_tags WHERE path = ? ORDER BY tag`,
		pathutil.Fold(folder),
	)
	if err != nil {
		return nil, fmt.Errorf("index: querying folder %s: %w", folder, err)
	}
	defer rows.Close()

	var tags []string

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("index: scanning row: %w", err)
		}

		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating rows: %w", err)
	}

	return tags, nil
}

// escapeLike escapes LIKE wildcards in a literal path prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)

	return s
}
