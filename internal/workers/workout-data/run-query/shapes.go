// internal/workers/workout-data/run-query/shapes.go
package runquery

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"workout-insights/internal/models"
)

// rowSet is what came back from the store: the capped rows plus the number produced.
type rowSet struct {
	columns []string
	rows    []map[string]interface{}
	total   int
}

// shape reports whether it recognizes set and, if so, fills result.
type shape func(set rowSet, result *models.QueryResult) bool

// Shapes are tried in order. rowsShape always matches.
var shapes = []shape{emptyShape, aggregateShape, documentShape, rowsShape}

var aggregateMarkers = map[string]bool{
	"value":    true,
	"count":    true,
	"sum":      true,
	"avg":      true,
	"min":      true,
	"max":      true,
	"total":    true,
	"?column?": true,
}

func classify(set rowSet, result *models.QueryResult) {
	for _, s := range shapes {
		if s(set, result) {
			return
		}
	}
}

func emptyShape(set rowSet, result *models.QueryResult) bool {
	if set.total != 0 {
		return false
	}
	result.Count = 0
	result.TotalCount = 0
	result.Results = []map[string]interface{}{}
	return true
}

func aggregateShape(set rowSet, result *models.QueryResult) bool {
	if set.total != 1 || len(set.columns) != 1 || !isAggregateMarker(set.columns[0]) {
		return false
	}
	result.Value = set.rows[0][set.columns[0]]
	result.Aggregate = true
	result.Count = 1
	result.TotalCount = 1
	result.Results = []map[string]interface{}{}
	return true
}

func documentShape(set rowSet, result *models.QueryResult) bool {
	if !hasColumn(set.columns, "doc") {
		return false
	}
	records := make([]map[string]interface{}, 0, len(set.rows))
	for _, row := range set.rows {
		doc, ok := row["doc"].(map[string]interface{})
		if !ok {
			return false
		}
		record := make(map[string]interface{}, len(doc)+len(row)-1)
		for k, v := range doc {
			record[k] = v
		}
		for k, v := range row {
			if k != "doc" {
				record[k] = v
			}
		}
		records = append(records, record)
	}
	result.Results = records
	result.Count = len(records)
	result.TotalCount = set.total
	return true
}

func rowsShape(set rowSet, result *models.QueryResult) bool {
	result.Results = set.rows
	result.Count = len(set.rows)
	result.TotalCount = set.total
	return true
}

func isAggregateMarker(column string) bool {
	column = strings.ToLower(column)
	return aggregateMarkers[column] || strings.HasPrefix(column, "$")
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// collect reads every row, keeping at most limit of them.
func collect(rows *sql.Rows, limit int) (rowSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return rowSet{}, err
	}

	set := rowSet{columns: columns, rows: []map[string]interface{}{}}
	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return rowSet{}, err
		}
		set.total++
		if len(set.rows) >= limit {
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			row[column] = normalize(values[i])
		}
		set.rows = append(set.rows, row)
	}
	return set, rows.Err()
}

// normalize turns driver values into JSON friendly ones. JSON bytes are decoded,
// numeric text becomes float64.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		trimmed := bytes.TrimSpace(val)
		if json.Valid(trimmed) {
			var decoded interface{}
			if err := json.Unmarshal(trimmed, &decoded); err == nil {
				return decoded
			}
		}
		return string(val)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && finite(f) {
			return f
		}
		return val
	case float64:
		if !finite(val) {
			return strconv.FormatFloat(val, 'g', -1, 64)
		}
		return val
	default:
		return val
	}
}

// finite reports whether f can be encoded as a JSON number.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
