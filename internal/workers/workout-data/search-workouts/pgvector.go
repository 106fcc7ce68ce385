// internal/workers/workout-data/search-workouts/pgvector.go
package searchworkouts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"workout-insights/internal/models"
	"workout-insights/internal/workers/workout-data/search-workouts/queries"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGVectorBackend searches workout embeddings kept next to the documents in PostgreSQL.
// The embeddings table has columns id, searchable_text and embedding.
type PGVectorBackend struct {
	db              *sql.DB
	workoutsTable   string
	embeddingsTable string
}

func NewPGVectorBackend(db *sql.DB, workoutsTable, index string) *PGVectorBackend {
	return &PGVectorBackend{
		db:              db,
		workoutsTable:   pq.QuoteIdentifier(workoutsTable),
		embeddingsTable: pq.QuoteIdentifier(EmbeddingsTable(index)),
	}
}

// EmbeddingsTable derives the table name used for an index name.
func EmbeddingsTable(index string) string {
	return strings.ReplaceAll(index, "-", "_")
}

const (
	textMatch    = "to_tsvector('english', e.searchable_text) @@ plainto_tsquery('english', $1)"
	textRank     = "ts_rank(to_tsvector('english', e.searchable_text), plainto_tsquery('english', $1))"
	textHeadline = "ts_headline('english', e.searchable_text, plainto_tsquery('english', $1))"
)

func (b *PGVectorBackend) statement(sq queries.SearchQuery) (string, []interface{}, error) {
	from := fmt.Sprintf("FROM %s e JOIN %s w ON w.id = e.id", b.embeddingsTable, b.workoutsTable)

	switch sq.Mode {
	case queries.Keyword, queries.Semantic:
		return fmt.Sprintf(
			"SELECT w.doc, e.searchable_text, %s AS score, %s AS caption, COUNT(*) OVER () AS total %s WHERE %s ORDER BY score DESC LIMIT $2",
			textRank, textHeadline, from, textMatch,
		), []interface{}{sq.Text, sq.Size}, nil
	case queries.Vector:
		if len(sq.Vector) == 0 {
			return "", nil, queries.ErrMissingVector
		}
		return fmt.Sprintf(
			"SELECT w.doc, e.searchable_text, 1 - (e.embedding <=> $1) AS score, '' AS caption, COUNT(*) OVER () AS total %s ORDER BY e.embedding <=> $1 LIMIT $2",
			from,
		), []interface{}{pgvector.NewVector(sq.Vector), sq.Size}, nil
	case queries.Hybrid:
		if len(sq.Vector) == 0 {
			return "", nil, queries.ErrMissingVector
		}
		return fmt.Sprintf(
			"SELECT w.doc, e.searchable_text, %s + (1 - (e.embedding <=> $2)) AS score, %s AS caption, COUNT(*) OVER () AS total %s ORDER BY score DESC LIMIT $3",
			textRank, textHeadline, from,
		), []interface{}{sq.Text, pgvector.NewVector(sq.Vector), sq.Size}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", queries.ErrUnknownSearchType, sq.Mode)
	}
}

func (b *PGVectorBackend) Search(ctx context.Context, sq queries.SearchQuery) (*queries.Result, error) {
	stmt, args, err := b.statement(sq)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &queries.Result{Hits: []models.SearchHit{}}
	for rows.Next() {
		var (
			raw     []byte
			doc     models.IndexDocument
			caption sql.NullString
			score   float64
			total   int
		)
		if err := rows.Scan(&raw, &doc.SearchableText, &score, &caption, &total); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &doc.WorkoutRecord); err != nil {
			return nil, fmt.Errorf("decode workout document: %w", err)
		}

		hit := queries.NewHit(doc)
		hit.Score = score
		if caption.Valid && caption.String != "" {
			hit.Captions = []string{caption.String}
		}
		result.Hits = append(result.Hits, hit)
		result.Total = total
	}
	return result, rows.Err()
}
