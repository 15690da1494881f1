// Package catalog implements a queryable projection of the novels held
// by the storage engine (C4), answering list_novels-style filtered
// listings and aggregate statistics without scanning the filesystem.
// It is a derived index: the filesystem manifests remain canonical, and
// Rebuild can always regenerate this database from them.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inkbound/novelhost/internal/model"
	"github.com/inkbound/novelhost/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Catalog is a SQLite-backed queryable novel catalog.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens a catalog database at path, configuring WAL mode
// and running the schema migration.
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// UpsertNovel indexes or reindexes a novel's catalog row from its stored
// manifest. Rebuild calls it for every stored novel; nothing else in the
// host calls it, so novels stored or changed after the last Rebuild are
// not reflected in the catalog until the next one.
func (c *Catalog) UpsertNovel(ctx context.Context, novelID model.NovelID, meta *storage.StorageMetadata) error {
	novel := meta.Novel

	var totalChapters, storedChapters int
	for _, v := range novel.Volumes {
		for _, ch := range v.Chapters {
			totalChapters++
			if _, ok := meta.ContentIndex[ch.URL]; ok {
				storedChapters++
			}
		}
	}

	authorsJSON, err := json.Marshal(novel.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO novels (novel_id, source_id, url, title, authors, status, total_chapters, stored_chapters, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(novel_id) DO UPDATE SET
			source_id=excluded.source_id, url=excluded.url, title=excluded.title,
			authors=excluded.authors, status=excluded.status,
			total_chapters=excluded.total_chapters, stored_chapters=excluded.stored_chapters,
			stored_at=excluded.stored_at`,
		string(novelID), meta.SourceID, novel.URL, novel.Title, string(authorsJSON),
		string(novel.Status), totalChapters, storedChapters, formatTime(meta.StoredAt))
	if err != nil {
		return fmt.Errorf("upsert novel %s: %w", novelID, err)
	}
	return nil
}

// DeleteNovel removes novelID's catalog row, returning false if it
// wasn't present.
func (c *Catalog) DeleteNovel(ctx context.Context, novelID model.NovelID) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM novels WHERE novel_id = ?`, string(novelID))
	if err != nil {
		return false, fmt.Errorf("delete novel %s: %w", novelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NovelFilter is the filter criteria for ListNovels, mirroring
// list_novels's NovelFilter.
type NovelFilter struct {
	SourceIDs     []string
	Statuses      []model.NovelStatus
	TitleContains string
	HasContent    *bool // true: stored_chapters > 0, false: stored_chapters == 0, nil: no filter
}

// NovelSummary is the lightweight listing projection list_novels
// returns, avoiding loading full Novel bodies for a list view.
type NovelSummary struct {
	NovelID        model.NovelID
	SourceID       string
	Title          string
	Authors        []string
	Status         model.NovelStatus
	TotalChapters  int
	StoredChapters int
	StoredAt       time.Time
}

// ListNovels returns summaries for every novel matching filter, ordered
// by stored_at descending (most recently touched first).
func (c *Catalog) ListNovels(ctx context.Context, filter NovelFilter) ([]NovelSummary, error) {
	var where []string
	var args []any

	if len(filter.SourceIDs) > 0 {
		placeholders := make([]string, len(filter.SourceIDs))
		for i, id := range filter.SourceIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, "source_id IN ("+strings.Join(placeholders, ",")+")")
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}

	if filter.TitleContains != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.TitleContains))+"%")
	}

	if filter.HasContent != nil {
		if *filter.HasContent {
			where = append(where, "stored_chapters > 0")
		} else {
			where = append(where, "stored_chapters = 0")
		}
	}

	query := `SELECT novel_id, source_id, title, authors, status, total_chapters, stored_chapters, stored_at FROM novels`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY stored_at DESC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list novels: %w", err)
	}
	defer rows.Close()

	var summaries []NovelSummary
	for rows.Next() {
		var (
			s           NovelSummary
			novelID     string
			status      string
			authorsJSON string
			storedAt    string
		)
		if err := rows.Scan(&novelID, &s.SourceID, &s.Title, &authorsJSON, &status, &s.TotalChapters, &s.StoredChapters, &storedAt); err != nil {
			return nil, fmt.Errorf("scan novel row: %w", err)
		}
		s.NovelID = model.NovelID(novelID)
		s.Status = model.NovelStatus(status)
		if err := json.Unmarshal([]byte(authorsJSON), &s.Authors); err != nil {
			return nil, fmt.Errorf("unmarshal authors for %s: %w", novelID, err)
		}
		t, err := parseTime(storedAt)
		if err != nil {
			return nil, fmt.Errorf("parse stored_at for %s: %w", novelID, err)
		}
		s.StoredAt = t
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Stats is the cheap aggregate catalog.StorageStats exposes: total
// novels, total chapters, and a per-source breakdown.
type Stats struct {
	TotalNovels    int
	TotalChapters  int
	NovelsBySource map[string]int
}

// Stats computes StorageStats from the catalog without touching the
// filesystem.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{NovelsBySource: map[string]int{}}

	row := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(total_chapters), 0) FROM novels`)
	if err := row.Scan(&stats.TotalNovels, &stats.TotalChapters); err != nil {
		return nil, fmt.Errorf("scan catalog totals: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT source_id, COUNT(*) FROM novels GROUP BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("query per-source counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceID string
		var count int
		if err := rows.Scan(&sourceID, &count); err != nil {
			return nil, fmt.Errorf("scan per-source count: %w", err)
		}
		stats.NovelsBySource[sourceID] = count
	}
	return stats, rows.Err()
}

// Rebuild drops every row and reindexes from the storage engine's own
// manifests, the recovery path when the catalog has drifted out of
// sync with the filesystem.
func (c *Catalog) Rebuild(ctx context.Context, storageEngine *storage.Engine) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM novels`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	sourceIDs, err := storageEngine.ListSourceIDs(ctx)
	if err != nil {
		return fmt.Errorf("list source ids: %w", err)
	}

	for _, sourceID := range sourceIDs {
		novelIDs, err := storageEngine.ListNovelIDs(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("list novel ids for %s: %w", sourceID, err)
		}
		for _, novelID := range novelIDs {
			meta, err := storageEngine.GetNovel(ctx, novelID)
			if err != nil {
				c.logger.Warn("skipping novel during catalog rebuild", "novel_id", novelID, "error", err)
				continue
			}
			if err := c.UpsertNovel(ctx, novelID, meta); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
