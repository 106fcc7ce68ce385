// internal/ingest/loader.go
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/lib/pq"
)

// Loader upserts workout records into the document table as (id, doc jsonb).
type Loader struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

func NewLoader(db *sql.DB, table string, log logger.Logger) *Loader {
	return &Loader{
		db:    db,
		table: pq.QuoteIdentifier(table),
		logger: log.With(map[string]interface{}{
			"component": "loader",
			"table":     table,
		}),
	}
}

func (l *Loader) EnsureTable(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc JSONB NOT NULL)", l.table,
	))
	if err != nil {
		return fmt.Errorf("create workouts table: %w", err)
	}
	return nil
}

// Load upserts every record read from r.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Stats, error) {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc", l.table,
	)

	stats, err := ReadJSONL(r, l.logger, func(_ int, rec models.WorkoutRecord) error {
		doc, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = l.db.ExecContext(ctx, stmt, rec.ID, doc)
		return err
	})

	l.logger.Info("upload complete", map[string]interface{}{
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
	})
	return stats, err
}
