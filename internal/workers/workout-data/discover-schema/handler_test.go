package discoverschema

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{"id":"entry_1","ExDate":"2024-01-15","Exercise":"Jumping Jacks","Set":1,"Reps":20,
"Weight":0,"ExType":"Cardio","_ts":1700000000,"Notes":"` + "0123456789012345678901234567890123456789012345678901234567890123456789" + `"}`

var (
	sampleQuery   = regexp.QuoteMeta(`SELECT doc FROM "workouts" LIMIT 1`)
	distinctQuery = regexp.QuoteMeta(`SELECT DISTINCT doc->>$1 AS value FROM "workouts" WHERE doc->>$1 IS NOT NULL ORDER BY value LIMIT 100`)
)

func createTestHandler(t *testing.T, cache Cache) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := LoadConfig(config.WorkoutsConfig{})
	return NewHandler(cfg, db, cache, logger.NewTestLogger(t)), mock
}

func expectSchemaQueries(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(sampleQuery).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(sampleDoc)))
	mock.ExpectQuery(distinctQuery).WithArgs("Exercise").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("Bench Press").AddRow("Jumping Jacks").AddRow("Pushup"))
	mock.ExpectQuery(distinctQuery).WithArgs("ExType").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("Cardio").AddRow("Strength"))
}

func TestHandler_Execute_DiscoversSchema(t *testing.T) {
	h, mock := createTestHandler(t, nil)
	expectSchemaQueries(mock)

	snapshot, err := h.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.NotContains(t, snapshot.Fields, "_ts")
	assert.Equal(t, models.FieldInfo{Type: "string", SampleValue: "Jumping Jacks"}, snapshot.Fields["Exercise"])
	assert.Equal(t, models.FieldInfo{Type: "number", SampleValue: "20"}, snapshot.Fields["Reps"])
	assert.Len(t, snapshot.Fields["Notes"].SampleValue, 50)

	assert.Equal(t, []string{"Bench Press", "Jumping Jacks", "Pushup"}, snapshot.Categorical("Exercise"))
	assert.Equal(t, []string{"Cardio", "Strength"}, snapshot.Categorical("ExType"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CachesSnapshot(t *testing.T) {
	h, mock := createTestHandler(t, nil)
	expectSchemaQueries(mock)

	first, err := h.Execute(context.Background())
	require.NoError(t, err)
	second, err := h.Execute(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EmptyCollection(t *testing.T) {
	h, mock := createTestHandler(t, nil)
	mock.ExpectQuery(sampleQuery).WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	snapshot, err := h.Execute(context.Background())
	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_StoreFailureIsNotCached(t *testing.T) {
	h, mock := createTestHandler(t, nil)
	mock.ExpectQuery(sampleQuery).WillReturnError(errors.New("connection refused"))
	expectSchemaQueries(mock)

	_, err := h.Execute(context.Background())
	assert.ErrorIs(t, err, ErrSchemaUnavailable)

	snapshot, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DistinctProbeFailureIsNonFatal(t *testing.T) {
	h, mock := createTestHandler(t, nil)
	mock.ExpectQuery(sampleQuery).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(sampleDoc)))
	mock.ExpectQuery(distinctQuery).WithArgs("Exercise").WillReturnError(errors.New("timeout"))
	mock.ExpectQuery(distinctQuery).WithArgs("ExType").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("Cardio"))

	snapshot, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot.Categorical("Exercise"))
	assert.Equal(t, []string{"Cardio"}, snapshot.Categorical("ExType"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_InvalidateAndTTL(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	h, mock := createTestHandler(t, cache)
	expectSchemaQueries(mock)
	expectSchemaQueries(mock)
	expectSchemaQueries(mock)

	_, err := h.Execute(context.Background())
	require.NoError(t, err)

	// still fresh
	now = now.Add(30 * time.Second)
	_, err = h.Execute(context.Background())
	require.NoError(t, err)

	// expired
	now = now.Add(31 * time.Second)
	_, err = h.Execute(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Invalidate(context.Background()))
	_, err = h.Execute(context.Background())
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 50))
	assert.Equal(t, strings.Repeat("é", 50), truncate(strings.Repeat("é", 60), 50))
}
