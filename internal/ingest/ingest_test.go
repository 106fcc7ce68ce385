package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"workout-insights/internal/common/llm/llmtest"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleCSV = " ExDate , Exercise ,Set, Reps ,Weight,ExType\n" +
	"2024-01-15, Bench Press ,1,8,135,Strength\n" +
	"2024-01-16,Jumping Jacks,2,20,,Cardio\n"

func TestConvertCSV(t *testing.T) {
	var out bytes.Buffer
	n, err := ConvertCSV(strings.NewReader(sampleCSV), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first, second models.WorkoutRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, models.WorkoutRecord{
		ID: "entry_1", ExDate: "2024-01-15", Exercise: "Bench Press",
		Set: 1, Reps: 8, Weight: 135, ExType: "Strength",
	}, first)
	assert.Equal(t, "entry_2", second.ID)
	assert.Equal(t, "Jumping Jacks", second.Exercise)
	assert.Equal(t, 20, second.Reps)
	assert.Zero(t, second.Weight)
}

func TestConvertCSV_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	_, err := ConvertCSV(strings.NewReader(sampleCSV), &out)
	require.NoError(t, err)

	var records []models.WorkoutRecord
	stats, err := ReadJSONL(&out, logger.NewNoOpLogger(), func(_ int, rec models.WorkoutRecord) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Succeeded: 2}, stats)
	require.Len(t, records, 2)
	assert.Equal(t, "Exercise: Bench Press | Type: Strength | Weight: 135 lbs | Reps: 8 | Set: 1 | Date: 2024-01-15",
		records[0].SearchableText())
	assert.Equal(t, 2, records[1].Set)
}

func TestConvertCSV_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	n, err := ConvertCSV(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out.String())
}

func TestParseRow(t *testing.T) {
	header := []string{"Exercise", "Set", "Reps", "Weight"}

	rec, err := ParseRow(header, []string{"Squat", "3.0", "5", "225.5"}, 7)
	require.NoError(t, err)
	assert.Equal(t, "entry_7", rec.ID)
	assert.Equal(t, 3, rec.Set)
	assert.Equal(t, 225.5, rec.Weight)

	_, err = ParseRow(header, []string{"Squat", "three", "5", "0"}, 8)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ParseRow(header, []string{"Squat", "3", "12.5", "0"}, 10)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.ErrorContains(t, err, "row 10 field Reps")

	short, err := ParseRow(header, []string{"Plank"}, 9)
	require.NoError(t, err)
	assert.Equal(t, "Plank", short.Exercise)
	assert.Zero(t, short.Reps)
}

const sampleJSONL = `{"id":"entry_1","Exercise":"Bench Press","Set":1,"Reps":8,"Weight":135,"ExType":"Strength"}

{"Exercise":"No Id"}
not json
{"id":"entry_2","Exercise":"Jumping Jacks","Set":2,"Reps":20,"Weight":0,"ExType":"Cardio"}
`

func TestReadJSONL(t *testing.T) {
	var seen []string
	stats, err := ReadJSONL(strings.NewReader(sampleJSONL), logger.NewNoOpLogger(), func(_ int, rec models.WorkoutRecord) error {
		if rec.ID == "entry_2" {
			return errors.New("rejected")
		}
		seen = append(seen, rec.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"entry_1"}, seen)
	assert.Equal(t, Stats{Succeeded: 1, Failed: 2, Skipped: 1}, stats)
}

func TestLoader(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewLoader(db, "workouts", logger.NewNoOpLogger())

	sqlMock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "workouts" (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, loader.EnsureTable(context.Background()))

	upsert := regexp.QuoteMeta(`INSERT INTO "workouts" (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`)
	sqlMock.ExpectExec(upsert).WithArgs("entry_1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec(upsert).WithArgs("entry_2", sqlmock.AnyArg()).WillReturnError(errors.New("disk full"))

	stats, err := loader.Load(context.Background(), strings.NewReader(sampleJSONL))
	require.NoError(t, err)
	assert.Equal(t, Stats{Succeeded: 1, Failed: 2, Skipped: 1}, stats)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

// fakeCluster serves the index and bulk endpoints used by ingestion.
type fakeCluster struct {
	mu         sync.Mutex
	exists     bool
	deleted    bool
	mapping    map[string]interface{}
	bulkCalls  int
	documents  map[string]map[string]interface{}
	rejectID   string
	deleteMiss bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		f.bulk(w, r)
	case r.Method == http.MethodHead:
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &f.mapping)
		f.exists = true
		fmt.Fprint(w, `{"acknowledged":true,"index":"workouts"}`)
	case r.Method == http.MethodDelete:
		if f.deleteMiss {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		f.deleted = true
		fmt.Fprint(w, `{"acknowledged":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}
}

func (f *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	f.bulkCalls++
	if f.documents == nil {
		f.documents = map[string]map[string]interface{}{}
	}

	var items []string
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var action map[string]map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil {
			continue
		}
		id, _ := action["index"]["_id"].(string)
		if !sc.Scan() {
			break
		}
		var doc map[string]interface{}
		_ = json.Unmarshal(sc.Bytes(), &doc)

		if id == f.rejectID {
			items = append(items, fmt.Sprintf(
				`{"index":{"_id":%q,"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad vector"}}}`, id))
			continue
		}
		f.documents[id] = doc
		items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201,"result":"created"}}`, id))
	}
	fmt.Fprintf(w, `{"took":1,"errors":%t,"items":[%s]}`, f.rejectID != "", strings.Join(items, ","))
}

func newCluster(t *testing.T, f *fakeCluster) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestIndexManager_Create(t *testing.T) {
	cluster := &fakeCluster{}
	manager := NewIndexManager(newCluster(t, cluster), "workouts", "Embedding", 3072, logger.NewNoOpLogger())

	created, err := manager.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	props := cluster.mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	vector := props["Embedding"].(map[string]interface{})
	assert.Equal(t, "dense_vector", vector["type"])
	assert.Equal(t, float64(3072), vector["dims"])
	assert.Equal(t, "cosine", vector["similarity"])
	assert.Equal(t, "keyword", props["id"].(map[string]interface{})["type"])
	assert.Equal(t, "double", props["Weight"].(map[string]interface{})["type"])

	created, err = manager.Create(context.Background())
	require.NoError(t, err)
	assert.False(t, created, "existing index is kept")
}

func TestIndexManager_Delete(t *testing.T) {
	cluster := &fakeCluster{exists: true}
	manager := NewIndexManager(newCluster(t, cluster), "workouts", "Embedding", 4, logger.NewNoOpLogger())

	deleted, err := manager.Delete(context.Background())
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, cluster.deleted)

	cluster.deleteMiss = true
	deleted, err = manager.Delete(context.Background())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func workoutLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		exercise := "Squat"
		if i == 2 {
			exercise = "Rowing"
		}
		fmt.Fprintf(&b, `{"id":"entry_%d","Exercise":%q,"Set":1,"Reps":5,"Weight":100,"ExType":"Strength"}`+"\n", i, exercise)
	}
	return b.String()
}

func TestPopulator_Elasticsearch(t *testing.T) {
	cluster := &fakeCluster{rejectID: "entry_4"}
	client := newCluster(t, cluster)

	embedder := new(llmtest.MockProvider)
	embedder.On("Embed", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Rowing")
	})).Return(nil, errors.New("quota exceeded"))
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)

	sink := NewElasticsearchSink(client, "workouts", "Embedding", logger.NewNoOpLogger())
	populator := NewPopulator(embedder, sink, 2, logger.NewNoOpLogger())

	stats, err := populator.Populate(context.Background(), strings.NewReader(workoutLines(5)))
	require.NoError(t, err)

	// entry_2 fails to embed, entry_4 is rejected by the cluster
	assert.Equal(t, Stats{Succeeded: 3, Failed: 2}, stats)
	assert.Equal(t, 2, cluster.bulkCalls)

	doc := cluster.documents["entry_1"]
	require.NotNil(t, doc)
	assert.Equal(t, "Squat", doc["Exercise"])
	assert.Equal(t, "Exercise: Squat | Type: Strength | Weight: 100 lbs | Reps: 5 | Set: 1", doc["SearchableText"])
	assert.Len(t, doc["Embedding"], 2)
}

func TestPGVectorSink(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := NewPGVectorSink(db, "workout-index", 2)

	sqlMock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "workout_index" (id TEXT PRIMARY KEY, searchable_text TEXT NOT NULL, embedding vector(2) NOT NULL)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, sink.EnsureTable(context.Background()))

	upsert := regexp.QuoteMeta(`INSERT INTO "workout_index" (id, searchable_text, embedding)`)
	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(upsert).WithArgs("entry_1", "Exercise: Squat", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec(upsert).WithArgs("entry_2", "Exercise: Row", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	n, err := sink.Write(context.Background(), []models.IndexDocument{
		{WorkoutRecord: models.WorkoutRecord{ID: "entry_1"}, SearchableText: "Exercise: Squat", Embedding: []float32{1, 0}},
		{WorkoutRecord: models.WorkoutRecord{ID: "entry_2"}, SearchableText: "Exercise: Row", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(upsert).WillReturnError(errors.New("dimension mismatch"))
	sqlMock.ExpectRollback()

	n, err = sink.Write(context.Background(), []models.IndexDocument{
		{WorkoutRecord: models.WorkoutRecord{ID: "entry_3"}, SearchableText: "x", Embedding: []float32{1}},
	})
	assert.Error(t, err)
	assert.Zero(t, n)

	sqlMock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "workout_index"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, sink.Drop(context.Background()))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
