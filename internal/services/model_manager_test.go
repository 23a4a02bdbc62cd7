package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statforge/statforge-go/internal/config"
	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/utils"
)

func newTestModelManager(t *testing.T) *ModelManager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	manager, err := NewModelManager(config.MLConfig{
		ModelsDir:     filepath.Join(t.TempDir(), "models"),
		MaxIterations: 2000,
	}, logger)
	require.NoError(t, err)
	return manager
}

func linearTrainingRequest() *models.TrainingRequest {
	// y = 1 + 2*x1 + 3*x2 exactly.
	features := [][]float64{
		{1, 1}, {2, 1}, {3, 2}, {4, 2}, {5, 3},
		{6, 3}, {7, 4}, {8, 4}, {9, 5}, {10, 5},
	}
	targets := make([]float64, len(features))
	for i, f := range features {
		targets[i] = 1 + 2*f[0] + 3*f[1]
	}
	return &models.TrainingRequest{
		ModelType:    models.ModelLinearRegression,
		Features:     features,
		Targets:      targets,
		FeatureNames: []string{"x1", "x2"},
	}
}

func TestModelManager_TrainLinearRegression(t *testing.T) {
	manager := newTestModelManager(t)

	result, err := manager.Train(context.Background(), linearTrainingRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ModelID)
	assert.Equal(t, models.ModelStatusReady, result.Status)
	assert.InDelta(t, 1.0, result.Metrics["r2"], 1e-6)
	assert.InDelta(t, 0.0, result.Metrics["mse"], 1e-6)
}

func TestModelManager_TrainAndPredictRoundTrip(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	trained, err := manager.Train(ctx, linearTrainingRequest())
	require.NoError(t, err)

	pred, err := manager.Predict(ctx, trained.ModelID, &models.PredictionRequest{
		Features: [][]float64{{11, 6}, {12, 6}},
	})
	require.NoError(t, err)

	require.Len(t, pred.Predictions, 2)
	assert.InDelta(t, 1+2*11+3*6, pred.Predictions[0], 1e-6)
	assert.InDelta(t, 1+2*12+3*6, pred.Predictions[1], 1e-6)
	assert.Nil(t, pred.Probabilities)
}

func TestModelManager_PredictSurvivesRestart(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := config.MLConfig{ModelsDir: t.TempDir(), MaxIterations: 2000}

	first, err := NewModelManager(cfg, logger)
	require.NoError(t, err)
	trained, err := first.Train(context.Background(), linearTrainingRequest())
	require.NoError(t, err)

	// A fresh manager over the same directory loads the model from disk.
	second, err := NewModelManager(cfg, logger)
	require.NoError(t, err)
	pred, err := second.Predict(context.Background(), trained.ModelID, &models.PredictionRequest{
		Features: [][]float64{{1, 1}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, pred.Predictions[0], 1e-6)
}

func TestModelManager_TrainRidge(t *testing.T) {
	manager := newTestModelManager(t)

	req := linearTrainingRequest()
	req.ModelType = models.ModelRidgeRegression
	req.Hyperparams = map[string]float64{"alpha": 0.01}

	result, err := manager.Train(context.Background(), req)
	require.NoError(t, err)
	assert.Greater(t, result.Metrics["r2"], 0.99)
}

func TestModelManager_TrainLogisticRegression(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	// Linearly separable on the first feature.
	features := [][]float64{
		{-3, 1}, {-2.5, 0}, {-2, 1}, {-1.5, 0}, {-1, 1},
		{1, 0}, {1.5, 1}, {2, 0}, {2.5, 1}, {3, 0},
	}
	targets := []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}

	trained, err := manager.Train(ctx, &models.TrainingRequest{
		ModelType: models.ModelLogisticRegression,
		Features:  features,
		Targets:   targets,
	})
	require.NoError(t, err)
	assert.Contains(t, trained.Metrics, "accuracy")
	assert.Contains(t, trained.Metrics, "f1")

	pred, err := manager.Predict(ctx, trained.ModelID, &models.PredictionRequest{
		Features: [][]float64{{-4, 0}, {4, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.Predictions[0])
	assert.Equal(t, 1.0, pred.Predictions[1])
	require.Len(t, pred.Probabilities, 2)
	assert.Less(t, pred.Probabilities[0], 0.5)
	assert.GreaterOrEqual(t, pred.Probabilities[1], 0.5)
}

func TestModelManager_TrainLogisticRejectsNonBinaryTargets(t *testing.T) {
	manager := newTestModelManager(t)

	_, err := manager.Train(context.Background(), &models.TrainingRequest{
		ModelType: models.ModelLogisticRegression,
		Features:  [][]float64{{1}, {2}, {3}},
		Targets:   []float64{0, 1, 2},
	})
	require.Error(t, err)
	assert.True(t, utils.IsClientError(err))
}

func TestModelManager_TrainKMeans(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	// Two well-separated clusters.
	features := [][]float64{
		{0, 0}, {0.2, 0.1}, {0.1, 0.3}, {0.3, 0.2},
		{10, 10}, {10.2, 9.9}, {9.8, 10.1}, {10.1, 10.3},
	}

	trained, err := manager.Train(ctx, &models.TrainingRequest{
		ModelType:   models.ModelKMeans,
		Features:    features,
		Hyperparams: map[string]float64{"n_clusters": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, trained.Metrics["n_clusters"])
	assert.Less(t, trained.Metrics["inertia"], 1.0)

	pred, err := manager.Predict(ctx, trained.ModelID, &models.PredictionRequest{
		Features: [][]float64{{0.1, 0.1}, {10, 10}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, pred.Predictions[0], pred.Predictions[1])
}

func TestModelManager_TrainKMeansTooManyClusters(t *testing.T) {
	manager := newTestModelManager(t)

	_, err := manager.Train(context.Background(), &models.TrainingRequest{
		ModelType:   models.ModelKMeans,
		Features:    [][]float64{{1}, {2}, {3}},
		Hyperparams: map[string]float64{"n_clusters": 5},
	})
	require.Error(t, err)

	var insufficientErr *utils.InsufficientDataError
	assert.ErrorAs(t, err, &insufficientErr)
}

func TestModelManager_TrainValidation(t *testing.T) {
	manager := newTestModelManager(t)

	cases := []struct {
		name string
		req  models.TrainingRequest
	}{
		{"too few samples", models.TrainingRequest{ModelType: models.ModelLinearRegression, Features: [][]float64{{1}}, Targets: []float64{1}}},
		{"ragged rows", models.TrainingRequest{ModelType: models.ModelLinearRegression, Features: [][]float64{{1, 2}, {1}}, Targets: []float64{1, 2}}},
		{"target length mismatch", models.TrainingRequest{ModelType: models.ModelLinearRegression, Features: [][]float64{{1}, {2}}, Targets: []float64{1}}},
		{"feature names mismatch", models.TrainingRequest{ModelType: models.ModelLinearRegression, Features: [][]float64{{1}, {2}}, Targets: []float64{1, 2}, FeatureNames: []string{"a", "b"}}},
		{"unsupported type", models.TrainingRequest{ModelType: "random_forest", Features: [][]float64{{1}, {2}}, Targets: []float64{1, 2}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Train(context.Background(), &tc.req)
			require.Error(t, err)
			assert.True(t, utils.IsClientError(err))
		})
	}
}

func TestModelManager_PredictUnknownModel(t *testing.T) {
	manager := newTestModelManager(t)

	_, err := manager.Predict(context.Background(), "no-such-model", &models.PredictionRequest{
		Features: [][]float64{{1}},
	})
	require.Error(t, err)
	assert.True(t, utils.IsClientError(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestModelManager_PredictFeatureWidthMismatch(t *testing.T) {
	manager := newTestModelManager(t)

	trained, err := manager.Train(context.Background(), linearTrainingRequest())
	require.NoError(t, err)

	_, err = manager.Predict(context.Background(), trained.ModelID, &models.PredictionRequest{
		Features: [][]float64{{1, 2, 3}},
	})
	require.Error(t, err)
	assert.True(t, utils.IsClientError(err))
}

func TestModelManager_ListAndGet(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	trained, err := manager.Train(ctx, linearTrainingRequest())
	require.NoError(t, err)

	items, err := manager.ListModels(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, trained.ModelID, items[0].ModelID)
	assert.Equal(t, models.ModelLinearRegression, items[0].ModelType)
	assert.Equal(t, 10, items[0].SampleCount)

	// Type filter: matching type keeps the model, any other type drops it.
	filtered, err := manager.ListModels(ctx, models.ModelLinearRegression)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
	filtered, err = manager.ListModels(ctx, models.ModelLogisticRegression)
	require.NoError(t, err)
	assert.Empty(t, filtered)

	meta, err := manager.GetModel(ctx, trained.ModelID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, meta.FeatureNames)
	assert.NotEmpty(t, meta.TrainingDataHash)
}

func TestModelManager_Delete(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	trained, err := manager.Train(ctx, linearTrainingRequest())
	require.NoError(t, err)

	require.NoError(t, manager.DeleteModel(ctx, trained.ModelID))

	_, err = manager.Predict(ctx, trained.ModelID, &models.PredictionRequest{Features: [][]float64{{1, 1}}})
	require.Error(t, err)

	items, err := manager.ListModels(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestModelManager_TrainingDataHashDeterministic(t *testing.T) {
	manager := newTestModelManager(t)
	ctx := context.Background()

	first, err := manager.Train(ctx, linearTrainingRequest())
	require.NoError(t, err)
	second, err := manager.Train(ctx, linearTrainingRequest())
	require.NoError(t, err)

	firstMeta, err := manager.GetModel(ctx, first.ModelID)
	require.NoError(t, err)
	secondMeta, err := manager.GetModel(ctx, second.ModelID)
	require.NoError(t, err)
	assert.Equal(t, firstMeta.TrainingDataHash, secondMeta.TrainingDataHash)
	assert.NotEqual(t, firstMeta.ModelID, secondMeta.ModelID)
}
