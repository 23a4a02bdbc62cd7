package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_RecordAnalysis(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	now := time.Now()
	mockPool.ExpectQuery("INSERT INTO analysis_results").
		WithArgs("forecast", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(125), "req-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(7), now))

	input := map[string]interface{}{"series_id": "series-42", "periods": 5}
	results := map[string]interface{}{"values": []float64{150, 155}}

	record, err := repo.RecordAnalysis(context.Background(), "forecast", input, results, 125*time.Millisecond, "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.ID)
	assert.Equal(t, now, record.Timestamp)
	assert.Equal(t, "forecast", record.AnalysisType)
	assert.JSONEq(t, `{"series_id":"series-42","periods":5}`, string(record.InputData))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryRepository_RecordAnalysis_UnencodableInput(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	_, err = repo.RecordAnalysis(context.Background(), "forecast", make(chan int), nil, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode analysis input")
}

func TestHistoryRepository_RecentAnalyses(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "timestamp", "analysis_type", "input_data", "results", "execution_time_ms", "request_id",
	}).
		AddRow(int64(2), now, "forecast", []byte(`{"a":1}`), []byte(`{"b":2}`), int64(10), "req-2").
		AddRow(int64(1), now.Add(-time.Minute), "forecast", []byte(`{}`), []byte(`{}`), int64(20), "req-1")

	mockPool.ExpectQuery("SELECT id, timestamp, analysis_type").
		WithArgs("forecast", 10).
		WillReturnRows(rows)

	records, err := repo.RecentAnalyses(context.Background(), "forecast", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, "req-2", records[0].RequestID)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryRepository_RecordTraining(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	hyper, _ := json.Marshal(map[string]float64{"alpha": 0.5})
	metrics, _ := json.Marshal(map[string]float64{"r2": 0.93})

	now := time.Now()
	mockPool.ExpectQuery("INSERT INTO model_training_logs").
		WithArgs("model-1", "ridge_regression", "abcd1234", hyper, metrics, "/models/model-1.json", "ready").
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(3), now))

	entry, err := repo.RecordTraining(context.Background(), TrainingLogEntry{
		ModelID:          "model-1",
		ModelType:        "ridge_regression",
		TrainingDataHash: "abcd1234",
		Hyperparameters:  hyper,
		Metrics:          metrics,
		ModelPath:        "/models/model-1.json",
		Status:           "ready",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.ID)
	assert.Equal(t, now, entry.Timestamp)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryRepository_UpdateTrainingStatus(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	mockPool.ExpectExec("UPDATE model_training_logs").
		WithArgs("model-1", "failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateTrainingStatus(context.Background(), "model-1", "failed")
	assert.NoError(t, err)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryRepository_UpdateTrainingStatus_NotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	mockPool.ExpectExec("UPDATE model_training_logs").
		WithArgs("missing", "failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateTrainingStatus(context.Background(), "missing", "failed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no training log found")
}

func TestHistoryRepository_TrainingHistory(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewHistoryRepository(mockPool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "timestamp", "model_id", "model_type", "training_data_hash",
		"hyperparameters", "metrics", "model_path", "status",
	}).AddRow(int64(1), now, "model-1", "kmeans", "ffff0000",
		[]byte(`{"k":3}`), []byte(`{"inertia":12.5}`), "/models/model-1.json", "ready")

	mockPool.ExpectQuery("SELECT id, timestamp, model_id").
		WithArgs(5).
		WillReturnRows(rows)

	entries, err := repo.TrainingHistory(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model-1", entries[0].ModelID)
	assert.Equal(t, "kmeans", entries[0].ModelType)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}
