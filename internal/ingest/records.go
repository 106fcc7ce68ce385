// Package ingest converts, loads and indexes workout records.
package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"
)

var ErrInvalidRecord = errors.New("INVALID_RECORD")

const progressEvery = 100

// Stats counts the outcome of one ingestion run.
type Stats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// ConvertCSV writes one JSON line per CSV row, numbering ids entry_1, entry_2, ...
// Header names and values are trimmed; empty numeric cells become zero.
func ConvertCSV(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	enc := json.NewEncoder(w)
	n := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read csv row %d: %w", n+1, err)
		}

		record, err := ParseRow(header, row, n+1)
		if err != nil {
			return n, err
		}
		if err := enc.Encode(record); err != nil {
			return n, fmt.Errorf("write record %s: %w", record.ID, err)
		}
		n++
	}
	return n, nil
}

// ParseRow maps a CSV row onto a WorkoutRecord with id entry_<n>.
func ParseRow(header, row []string, n int) (models.WorkoutRecord, error) {
	rec := models.WorkoutRecord{ID: fmt.Sprintf("entry_%d", n)}
	for i, name := range header {
		if i >= len(row) {
			break
		}
		value := strings.TrimSpace(row[i])

		var err error
		switch name {
		case "ExDate":
			rec.ExDate = value
		case "Exercise":
			rec.Exercise = value
		case "ExType":
			rec.ExType = value
		case "Set":
			rec.Set, err = parseInt(value)
		case "Reps":
			rec.Reps, err = parseInt(value)
		case "Weight":
			rec.Weight, err = parseFloat(value)
		}
		if err != nil {
			return rec, fmt.Errorf("%w: row %d field %s: %v", ErrInvalidRecord, n, name, err)
		}
	}
	return rec, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadJSONL calls fn for every record line. Lines that do not decode or whose fn fails
// count as failed; records without an id are skipped.
func ReadJSONL(r io.Reader, log logger.Logger, fn func(line int, rec models.WorkoutRecord) error) (Stats, error) {
	var stats Stats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var rec models.WorkoutRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			stats.Failed++
			log.Warn("invalid record line", map[string]interface{}{"line": line, "error": err.Error()})
			continue
		}
		if rec.ID == "" {
			stats.Skipped++
			log.Warn("record has no id, skipping", map[string]interface{}{"line": line})
			continue
		}

		if err := fn(line, rec); err != nil {
			stats.Failed++
			log.Warn("record failed", map[string]interface{}{"line": line, "id": rec.ID, "error": err.Error()})
			continue
		}
		stats.Succeeded++
		if stats.Succeeded%progressEvery == 0 {
			log.Info("progress", map[string]interface{}{"records": stats.Succeeded})
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read records: %w", err)
	}
	return stats, nil
}
