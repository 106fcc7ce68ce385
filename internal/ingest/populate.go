// internal/ingest/populate.go
package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"
	searchworkouts "workout-insights/internal/workers/workout-data/search-workouts"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Sink stores a batch of embedded documents and reports how many were written.
type Sink interface {
	Write(ctx context.Context, docs []models.IndexDocument) (int, error)
}

// Populator embeds every record and writes them to a Sink in batches.
type Populator struct {
	embedder  llm.Embedder
	sink      Sink
	batchSize int
	logger    logger.Logger
}

func NewPopulator(embedder llm.Embedder, sink Sink, batchSize int, log logger.Logger) *Populator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Populator{
		embedder:  embedder,
		sink:      sink,
		batchSize: batchSize,
		logger:    log.With(map[string]interface{}{"component": "populate"}),
	}
}

// Populate reads JSONL records from r. Records whose embedding fails are counted
// as failed and left out of the index.
func (p *Populator) Populate(ctx context.Context, r io.Reader) (Stats, error) {
	batch := make([]models.IndexDocument, 0, p.batchSize)
	written, dropped := 0, 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := p.sink.Write(ctx, batch)
		if err != nil {
			p.logger.Error("batch failed", map[string]interface{}{"size": len(batch), "error": err.Error()})
		}
		written += n
		dropped += len(batch) - n
		p.logger.Info("batch written", map[string]interface{}{"written": n, "total": written})
		batch = batch[:0]
	}

	stats, err := ReadJSONL(r, p.logger, func(_ int, rec models.WorkoutRecord) error {
		text := rec.SearchableText()
		vec, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", rec.ID, err)
		}
		batch = append(batch, models.IndexDocument{WorkoutRecord: rec, SearchableText: text, Embedding: vec})
		if len(batch) >= p.batchSize {
			flush()
		}
		return nil
	})
	flush()

	stats.Succeeded = written
	stats.Failed += dropped
	p.logger.Info("populate complete", map[string]interface{}{
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
	})
	return stats, err
}

// ElasticsearchSink bulk-indexes documents, putting the embedding under the
// configured vector field.
type ElasticsearchSink struct {
	client      *elasticsearch.Client
	index       string
	vectorField string
	logger      logger.Logger
}

func NewElasticsearchSink(client *elasticsearch.Client, index, vectorField string, log logger.Logger) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index, vectorField: vectorField, logger: log}
}

func (s *ElasticsearchSink) Write(ctx context.Context, docs []models.IndexDocument) (int, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     s.client,
		Index:      s.index,
		NumWorkers: 1,
		FlushBytes: 5 << 20,
	})
	if err != nil {
		return 0, fmt.Errorf("create bulk indexer: %w", err)
	}

	for _, doc := range docs {
		body, err := s.encode(doc)
		if err != nil {
			s.logger.Warn("document not encodable", map[string]interface{}{"id": doc.ID, "error": err.Error()})
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				fields := map[string]interface{}{"id": item.DocumentID, "status": res.Status}
				if err != nil {
					fields["error"] = err.Error()
				} else {
					fields["error"] = res.Error.Reason
				}
				s.logger.Warn("document rejected", fields)
			},
		})
		if err != nil {
			return 0, fmt.Errorf("queue %s: %w", doc.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return int(bi.Stats().NumIndexed), fmt.Errorf("flush bulk indexer: %w", err)
	}
	return int(bi.Stats().NumIndexed), nil
}

func (s *ElasticsearchSink) encode(doc models.IndexDocument) ([]byte, error) {
	vec := doc.Embedding
	doc.Embedding = nil

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body[s.vectorField] = vec
	return json.Marshal(body)
}

// Refresh makes freshly indexed documents searchable.
func (s *ElasticsearchSink) Refresh(ctx context.Context) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// PGVectorSink upserts embeddings into the table the pgvector search backend reads.
type PGVectorSink struct {
	db    *sql.DB
	table string
	dims  int
}

func NewPGVectorSink(db *sql.DB, index string, dims int) *PGVectorSink {
	return &PGVectorSink{
		db:    db,
		table: pq.QuoteIdentifier(searchworkouts.EmbeddingsTable(index)),
		dims:  dims,
	}
}

func (s *PGVectorSink) EnsureTable(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, searchable_text TEXT NOT NULL, embedding vector(%d) NOT NULL)",
			s.table, s.dims,
		),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare embeddings table: %w", err)
		}
	}
	return nil
}

// Drop removes the embeddings table.
func (s *PGVectorSink) Drop(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
		return fmt.Errorf("drop embeddings table: %w", err)
	}
	return nil
}

func (s *PGVectorSink) Write(ctx context.Context, docs []models.IndexDocument) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, searchable_text, embedding) VALUES ($1, $2, $3) "+
			"ON CONFLICT (id) DO UPDATE SET searchable_text = EXCLUDED.searchable_text, embedding = EXCLUDED.embedding",
		s.table,
	)
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, stmt, doc.ID, doc.SearchableText, pgvector.NewVector(doc.Embedding)); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}
