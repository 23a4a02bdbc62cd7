package models

import "time"

// ModelType identifies a trainable model family.
type ModelType string

const (
	ModelLinearRegression   ModelType = "linear_regression"
	ModelRidgeRegression    ModelType = "ridge_regression"
	ModelLogisticRegression ModelType = "logistic_regression"
	ModelKMeans             ModelType = "kmeans"
)

// ModelStatus tracks a model's lifecycle.
type ModelStatus string

const (
	ModelStatusTraining ModelStatus = "training"
	ModelStatusReady    ModelStatus = "ready"
	ModelStatusFailed   ModelStatus = "failed"
)

// ModelMetadata is persisted next to each trained model artifact.
type ModelMetadata struct {
	ModelID      string      `json:"model_id"`
	ModelType    ModelType   `json:"model_type"`
	Status       ModelStatus `json:"status"`
	FeatureNames []string    `json:"feature_names"`
	// TrainingDataHash fingerprints the training set for reproducibility
	// audits and the training log.
	TrainingDataHash string             `json:"training_data_hash,omitempty"`
	Hyperparams      map[string]float64 `json:"hyperparameters,omitempty"`
	Metrics          map[string]float64 `json:"metrics,omitempty"`
	SampleCount      int                `json:"sample_count"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TrainingRequest asks for a new model to be trained.
type TrainingRequest struct {
	ModelType    ModelType          `json:"model_type" binding:"required"`
	Features     [][]float64        `json:"features" binding:"required,min=2"`
	Targets      []float64          `json:"targets"`
	FeatureNames []string           `json:"feature_names"`
	Hyperparams  map[string]float64 `json:"hyperparameters"`
}

// TrainingResult reports a completed training run.
type TrainingResult struct {
	ModelID   string             `json:"model_id"`
	ModelType ModelType          `json:"model_type"`
	Status    ModelStatus        `json:"status"`
	Metrics   map[string]float64 `json:"metrics"`
}

// PredictionRequest asks a trained model to score new samples.
type PredictionRequest struct {
	Features [][]float64 `json:"features" binding:"required,min=1"`
}

// PredictionResult carries model outputs for a prediction request.
type PredictionResult struct {
	ModelID     string    `json:"model_id"`
	ModelType   ModelType `json:"model_type"`
	Predictions []float64 `json:"predictions"`
	// Probabilities is set for classifiers only.
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// ModelListItem is the summary row returned when listing models.
type ModelListItem struct {
	ModelID     string      `json:"model_id"`
	ModelType   ModelType   `json:"model_type"`
	Status      ModelStatus `json:"status"`
	SampleCount int         `json:"sample_count"`
	CreatedAt   time.Time   `json:"created_at"`
}
