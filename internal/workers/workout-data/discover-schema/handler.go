// internal/workers/workout-data/discover-schema/handler.go
package discoverschema

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/models"

	"github.com/lib/pq"
)

const TaskType = "discover-schema"

var (
	ErrSchemaUnavailable = errors.New("SCHEMA_DISCOVERY_FAILED")
	ErrEmptyCollection   = errors.New("workout collection is empty")
)

type Handler struct {
	config *Config
	db     *sql.DB
	cache  Cache
	logger logger.Logger

	// serializes probes so concurrent misses issue one set of queries
	probeMu sync.Mutex
}

func NewHandler(config *Config, db *sql.DB, cache Cache, log logger.Logger) *Handler {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Handler{
		config: config,
		db:     db,
		cache:  cache,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute returns the cached snapshot or probes the store. Any failure is
// reported as ErrSchemaUnavailable and callers proceed without a schema.
func (h *Handler) Execute(ctx context.Context) (*models.SchemaSnapshot, error) {
	if snapshot, ok := h.cache.Get(ctx); ok {
		return snapshot, nil
	}

	h.probeMu.Lock()
	defer h.probeMu.Unlock()

	if snapshot, ok := h.cache.Get(ctx); ok {
		return snapshot, nil
	}

	done := metrics.Stage(TaskType)
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	snapshot, err := h.execute(ctx)
	if err != nil {
		done(ErrSchemaUnavailable.Error())
		h.logger.Error("schema discovery failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	done("")

	h.cache.Set(ctx, snapshot)
	return snapshot, nil
}

// Invalidate drops the cached snapshot so the next Execute probes again.
func (h *Handler) Invalidate(ctx context.Context) error {
	return h.cache.Invalidate(ctx)
}

func (h *Handler) execute(ctx context.Context) (*models.SchemaSnapshot, error) {
	table := pq.QuoteIdentifier(h.config.Table)

	var raw []byte
	err := h.db.QueryRowContext(ctx, fmt.Sprintf("SELECT doc FROM %s LIMIT 1", table)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmptyCollection
	}
	if err != nil {
		return nil, fmt.Errorf("sample document: %w", err)
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sample document: %w", err)
	}

	snapshot := &models.SchemaSnapshot{
		Fields:            make(map[string]models.FieldInfo, len(doc)),
		CategoricalValues: make(map[string][]string),
	}
	for name, value := range doc {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		snapshot.Fields[name] = models.FieldInfo{
			Type:        jsonType(value),
			SampleValue: truncate(sampleString(value), h.config.SampleValueLength),
		}
	}

	for _, field := range h.config.CategoricalFields {
		info, ok := snapshot.Fields[field]
		if !ok || info.Type != "string" {
			continue
		}
		values, err := h.distinctValues(ctx, table, field)
		if err != nil {
			h.logger.Warn("could not get distinct values", map[string]interface{}{
				"field": field,
				"error": err.Error(),
			})
			continue
		}
		if len(values) > 0 {
			snapshot.CategoricalValues[field] = values
		}
	}

	h.logger.Info("schema discovered", map[string]interface{}{
		"fieldCount":       len(snapshot.Fields),
		"categoricalCount": len(snapshot.CategoricalValues),
	})

	return snapshot, nil
}

func (h *Handler) distinctValues(ctx context.Context, table, field string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT doc->>$1 AS value FROM %s WHERE doc->>$1 IS NOT NULL ORDER BY value LIMIT %d",
		table, h.config.DistinctLimit,
	)
	rows, err := h.db.QueryContext(ctx, query, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
