package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AnalysisRecord is a persisted row of the analysis_results table.
type AnalysisRecord struct {
	// ID is the unique identifier.
	ID int64 `json:"id" db:"id"`
	// Timestamp is when the analysis ran.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	// AnalysisType names the operation, e.g. "forecast" or "correlation".
	AnalysisType string `json:"analysis_type" db:"analysis_type"`
	// InputData is the JSON-encoded request parameters.
	InputData []byte `json:"input_data" db:"input_data"`
	// Results is the JSON-encoded result payload.
	Results []byte `json:"results" db:"results"`
	// ExecutionTimeMS is the wall-clock duration of the computation.
	ExecutionTimeMS int64 `json:"execution_time_ms" db:"execution_time_ms"`
	// RequestID correlates the row with HTTP access logs.
	RequestID string `json:"request_id" db:"request_id"`
}

// TrainingLogEntry is a persisted row of the model_training_logs table.
type TrainingLogEntry struct {
	// ID is the unique identifier.
	ID int64 `json:"id" db:"id"`
	// Timestamp is when training started.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	// ModelID is the opaque identifier of the trained model.
	ModelID string `json:"model_id" db:"model_id"`
	// ModelType names the model family.
	ModelType string `json:"model_type" db:"model_type"`
	// TrainingDataHash fingerprints the training set.
	TrainingDataHash string `json:"training_data_hash" db:"training_data_hash"`
	// Hyperparameters is the JSON-encoded hyperparameter map.
	Hyperparameters []byte `json:"hyperparameters" db:"hyperparameters"`
	// Metrics is the JSON-encoded metric map.
	Metrics []byte `json:"metrics" db:"metrics"`
	// ModelPath is where the model artifact is stored on disk.
	ModelPath string `json:"model_path" db:"model_path"`
	// Status is the training lifecycle state.
	Status string `json:"status" db:"status"`
}

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// HistoryRepository persists analysis runs and model training logs.
type HistoryRepository struct {
	pool DatabasePool
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(pool DatabasePool) *HistoryRepository {
	return &HistoryRepository{
		pool: pool,
	}
}

// RecordAnalysis inserts a completed analysis run. Input and result payloads
// are stored as JSONB.
func (r *HistoryRepository) RecordAnalysis(ctx context.Context, analysisType string, input, results interface{}, executionTime time.Duration, requestID string) (*AnalysisRecord, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis input: %w", err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis results: %w", err)
	}

	query := `
		INSERT INTO analysis_results (analysis_type, input_data, results, execution_time_ms, request_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp
	`

	record := AnalysisRecord{
		AnalysisType:    analysisType,
		InputData:       inputJSON,
		Results:         resultsJSON,
		ExecutionTimeMS: executionTime.Milliseconds(),
		RequestID:       requestID,
	}
	err = r.pool.QueryRow(ctx, query,
		analysisType, inputJSON, resultsJSON, record.ExecutionTimeMS, requestID,
	).Scan(&record.ID, &record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}

	return &record, nil
}

// RecentAnalyses returns the most recent runs of a given analysis type,
// newest first. An empty analysisType returns runs of every type.
func (r *HistoryRepository) RecentAnalyses(ctx context.Context, analysisType string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, analysis_type, input_data, results, execution_time_ms, request_id
		FROM analysis_results
		WHERE ($1 = '' OR analysis_type = $1)
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, analysisType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis history: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.AnalysisType,
			&rec.InputData,
			&rec.Results,
			&rec.ExecutionTimeMS,
			&rec.RequestID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analysis history: %w", err)
	}

	return records, nil
}

// RecordTraining inserts a model training log entry and returns it with the
// assigned id and timestamp.
func (r *HistoryRepository) RecordTraining(ctx context.Context, entry TrainingLogEntry) (*TrainingLogEntry, error) {
	query := `
		INSERT INTO model_training_logs (model_id, model_type, training_data_hash, hyperparameters, metrics, model_path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, timestamp
	`

	err := r.pool.QueryRow(ctx, query,
		entry.ModelID,
		entry.ModelType,
		entry.TrainingDataHash,
		entry.Hyperparameters,
		entry.Metrics,
		entry.ModelPath,
		entry.Status,
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to record training run: %w", err)
	}

	return &entry, nil
}

// UpdateTrainingStatus moves a training log entry to a new lifecycle state.
func (r *HistoryRepository) UpdateTrainingStatus(ctx context.Context, modelID, status string) error {
	query := `
		UPDATE model_training_logs
		SET status = $2
		WHERE model_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, modelID, status)
	if err != nil {
		return fmt.Errorf("failed to update training status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no training log found for model %s", modelID)
	}
	return nil
}

// TrainingHistory returns the most recent training runs, newest first.
func (r *HistoryRepository) TrainingHistory(ctx context.Context, limit int) ([]TrainingLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, model_id, model_type, training_data_hash, hyperparameters, metrics, model_path, status
		FROM model_training_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training history: %w", err)
	}
	defer rows.Close()

	var entries []TrainingLogEntry
	for rows.Next() {
		var e TrainingLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.ModelID,
			&e.ModelType,
			&e.TrainingDataHash,
			&e.Hyperparameters,
			&e.Metrics,
			&e.ModelPath,
			&e.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training history: %w", err)
	}

	return entries, nil
}
