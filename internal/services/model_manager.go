package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/config"
	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/telemetry"
	"github.com/statforge/statforge-go/internal/utils"
)

const (
	paramsSuffix   = ".model.json"
	metadataSuffix = ".meta.json"

	// splitSeed fixes the train/validation shuffle so repeated training on
	// identical data produces identical metrics.
	splitSeed = 42
)

// modelParams is the persisted parameter set. Weights hold the intercept at
// index 0 for the regression families; Centroids are set for kmeans only.
type modelParams struct {
	Weights   []float64   `json:"weights,omitempty"`
	Centroids [][]float64 `json:"centroids,omitempty"`
}

type trainedModel struct {
	meta   models.ModelMetadata
	params modelParams
}

// ModelManager trains, persists, and serves lightweight ML models. Trained
// models live as a pair of JSON files (parameters + metadata) under the
// models directory and are held in an eviction-free in-memory map once
// loaded; loading is idempotent.
type ModelManager struct {
	cfg    config.MLConfig
	logger *logrus.Logger
	tracer *telemetry.AnalysisTracer

	mu     sync.RWMutex
	loaded map[string]*trainedModel
}

// NewModelManager creates a model manager rooted at cfg.ModelsDir, creating
// the directory if needed.
func NewModelManager(cfg config.MLConfig, logger *logrus.Logger) (*ModelManager, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(cfg.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory %s: %w", cfg.ModelsDir, err)
	}
	return &ModelManager{
		cfg:    cfg,
		logger: logger,
		tracer: telemetry.NewAnalysisTracer(),
		loaded: make(map[string]*trainedModel),
	}, nil
}

// Train fits a model of the requested type, persists it, and returns its id
// and validation metrics.
func (m *ModelManager) Train(ctx context.Context, req *models.TrainingRequest) (*models.TrainingResult, error) {
	features, targets, featureNames, err := m.validateTrainingData(req)
	if err != nil {
		return nil, err
	}

	_, span := m.tracer.TraceModelTraining(ctx, string(req.ModelType), len(features))
	defer span.End()

	trainX, trainY, valX, valY := splitTrainValidation(features, targets)

	var params modelParams
	var metrics map[string]float64
	switch req.ModelType {
	case models.ModelLinearRegression:
		params, metrics, err = m.trainLinearRegression(trainX, trainY, valX, valY, 0)
	case models.ModelRidgeRegression:
		alpha := hyperparam(req.Hyperparams, "alpha", 1.0)
		if alpha < 0 {
			return nil, utils.NewValidationErrorf("ridge alpha must be non-negative, got %g", alpha)
		}
		params, metrics, err = m.trainLinearRegression(trainX, trainY, valX, valY, alpha)
	case models.ModelLogisticRegression:
		params, metrics, err = m.trainLogisticRegression(req.Hyperparams, trainX, trainY, valX, valY)
	case models.ModelKMeans:
		params, metrics, err = m.trainKMeans(req.Hyperparams, features)
	default:
		return nil, utils.NewValidationErrorf("unsupported model type: %s", req.ModelType)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := models.ModelMetadata{
		ModelID:          uuid.NewString(),
		ModelType:        req.ModelType,
		Status:           models.ModelStatusReady,
		FeatureNames:     featureNames,
		TrainingDataHash: hashTrainingData(features, targets),
		Hyperparams:      req.Hyperparams,
		Metrics:          metrics,
		SampleCount:      len(features),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	model := &trainedModel{meta: meta, params: params}
	if err := m.persist(model); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.loaded[meta.ModelID] = model
	m.mu.Unlock()

	m.tracer.RecordTrainingOutcome(span, meta.ModelID, metrics)
	m.logger.WithFields(logrus.Fields{
		"model_id":   meta.ModelID,
		"model_type": meta.ModelType,
		"samples":    meta.SampleCount,
	}).Info("Model trained")

	return &models.TrainingResult{
		ModelID:   meta.ModelID,
		ModelType: meta.ModelType,
		Status:    meta.Status,
		Metrics:   metrics,
	}, nil
}

func (m *ModelManager) validateTrainingData(req *models.TrainingRequest) ([][]float64, []float64, []string, error) {
	features := req.Features
	if len(features) < 2 {
		return nil, nil, nil, utils.NewInsufficientDataErrorf(
			"training needs at least 2 samples, got %d", len(features))
	}
	width := len(features[0])
	if width == 0 {
		return nil, nil, nil, utils.NewValidationError("feature rows must not be empty")
	}
	for i, row := range features {
		if len(row) != width {
			return nil, nil, nil, utils.NewValidationErrorf(
				"feature row %d has %d values, expected %d", i, len(row), width)
		}
	}

	if req.ModelType != models.ModelKMeans {
		if len(req.Targets) != len(features) {
			return nil, nil, nil, utils.NewValidationErrorf(
				"targets length %d does not match feature rows %d", len(req.Targets), len(features))
		}
	}

	names := req.FeatureNames
	if len(names) == 0 {
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("x%d", i+1)
		}
	} else if len(names) != width {
		return nil, nil, nil, utils.NewValidationErrorf(
			"feature_names length %d does not match feature width %d", len(names), width)
	}

	return features, req.Targets, names, nil
}

// splitTrainValidation shuffles with a fixed seed and holds out 20% for
// validation. Small samples train and validate on the full set.
func splitTrainValidation(features [][]float64, targets []float64) ([][]float64, []float64, [][]float64, []float64) {
	n := len(features)
	if n < 5 {
		return features, targets, features, targets
	}

	idx := rand.New(rand.NewSource(splitSeed)).Perm(n)
	cut := n - n/5

	trainX := make([][]float64, 0, cut)
	valX := make([][]float64, 0, n-cut)
	var trainY, valY []float64
	for i, j := range idx {
		if i < cut {
			trainX = append(trainX, features[j])
			if targets != nil {
				trainY = append(trainY, targets[j])
			}
		} else {
			valX = append(valX, features[j])
			if targets != nil {
				valY = append(valY, targets[j])
			}
		}
	}
	return trainX, trainY, valX, valY
}

func hashTrainingData(features [][]float64, targets []float64) string {
	payload, err := json.Marshal(struct {
		Features [][]float64 `json:"features"`
		Targets  []float64   `json:"targets"`
	}{features, targets})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}

func hyperparam(params map[string]float64, name string, fallback float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return fallback
}

// trainLinearRegression solves the (optionally ridge-regularized) normal
// equations for a multivariate linear fit.
func (m *ModelManager) trainLinearRegression(trainX [][]float64, trainY []float64, valX [][]float64, valY []float64, ridgeAlpha float64) (modelParams, map[string]float64, error) {
	width := len(trainX[0])
	p := width + 1

	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)
	row := make([]float64, p)
	for i, sample := range trainX {
		row[0] = 1
		copy(row[1:], sample)
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * trainY[i]
		}
	}
	for j := 1; j < p; j++ {
		xtx[j][j] += ridgeAlpha
	}

	weights, err := solveLinearSystem(xtx, xty)
	if err != nil {
		return modelParams{}, nil, utils.NewValidationError("training design matrix is singular; features may be collinear")
	}

	params := modelParams{Weights: weights}
	return params, regressionMetrics(params, valX, valY), nil
}

func regressionMetrics(params modelParams, valX [][]float64, valY []float64) map[string]float64 {
	n := len(valX)
	yMean := mean(valY)
	var ssRes, ssTot, sumAbs float64
	for i, sample := range valX {
		pred := predictLinear(params.Weights, sample)
		d := valY[i] - pred
		ssRes += d * d
		sumAbs += math.Abs(d)
		dt := valY[i] - yMean
		ssTot += dt * dt
	}
	mse := ssRes / float64(n)
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return map[string]float64{
		"mse":  mse,
		"mae":  sumAbs / float64(n),
		"rmse": math.Sqrt(mse),
		"r2":   r2,
	}
}

func predictLinear(weights []float64, sample []float64) float64 {
	v := weights[0]
	for i, x := range sample {
		v += weights[i+1] * x
	}
	return v
}

// trainLogisticRegression fits a binary classifier by batch gradient descent.
func (m *ModelManager) trainLogisticRegression(hyper map[string]float64, trainX [][]float64, trainY []float64, valX [][]float64, valY []float64) (modelParams, map[string]float64, error) {
	for _, y := range trainY {
		if y != 0 && y != 1 {
			return modelParams{}, nil, utils.NewValidationError("logistic regression targets must be 0 or 1")
		}
	}

	lr := hyperparam(hyper, "learning_rate", 0.1)
	if lr <= 0 {
		return modelParams{}, nil, utils.NewValidationErrorf("learning_rate must be positive, got %g", lr)
	}
	iterations := int(hyperparam(hyper, "max_iterations", float64(m.cfg.MaxIterations)))
	if iterations < 1 {
		iterations = m.cfg.MaxIterations
	}

	width := len(trainX[0])
	weights := make([]float64, width+1)
	grad := make([]float64, width+1)
	n := float64(len(trainX))

	for iter := 0; iter < iterations; iter++ {
		for i := range grad {
			grad[i] = 0
		}
		for i, sample := range trainX {
			err := sigmoid(predictLinear(weights, sample)) - trainY[i]
			grad[0] += err
			for j, x := range sample {
				grad[j+1] += err * x
			}
		}
		for i := range weights {
			weights[i] -= lr * grad[i] / n
		}
	}

	params := modelParams{Weights: weights}
	return params, classificationMetrics(params, valX, valY), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func classificationMetrics(params modelParams, valX [][]float64, valY []float64) map[string]float64 {
	var tp, tn, fp, fn float64
	for i, sample := range valX {
		pred := 0.0
		if sigmoid(predictLinear(params.Weights, sample)) >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && valY[i] == 1:
			tp++
		case pred == 0 && valY[i] == 0:
			tn++
		case pred == 1:
			fp++
		default:
			fn++
		}
	}

	total := tp + tn + fp + fn
	accuracy := 0.0
	if total > 0 {
		accuracy = (tp + tn) / total
	}
	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return map[string]float64{
		"accuracy":  accuracy,
		"precision": precision,
		"recall":    recall,
		"f1":        f1,
	}
}

// trainKMeans runs Lloyd's algorithm with seeded initialization over the
// full sample (no hold-out; clustering has no targets to validate against).
func (m *ModelManager) trainKMeans(hyper map[string]float64, features [][]float64) (modelParams, map[string]float64, error) {
	k := int(hyperparam(hyper, "n_clusters", 3))
	if k < 1 {
		return modelParams{}, nil, utils.NewValidationErrorf("n_clusters must be at least 1, got %d", k)
	}
	if k > len(features) {
		return modelParams{}, nil, utils.NewInsufficientDataErrorf(
			"kmeans with %d clusters needs at least %d samples, got %d", k, k, len(features))
	}

	width := len(features[0])
	rng := rand.New(rand.NewSource(splitSeed))

	centroids := make([][]float64, k)
	for i, j := range rng.Perm(len(features))[:k] {
		centroids[i] = append([]float64(nil), features[j]...)
	}

	assignments := make([]int, len(features))
	for iter := 0; iter < m.cfg.MaxIterations; iter++ {
		changed := false
		for i, sample := range features {
			best := nearestCentroid(centroids, sample)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for i := range sums {
			sums[i] = make([]float64, width)
		}
		for i, sample := range features {
			c := assignments[i]
			counts[c]++
			for j, x := range sample {
				sums[c][j] += x
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, sample := range features {
		inertia += squaredDistance(sample, centroids[assignments[i]])
	}

	params := modelParams{Centroids: centroids}
	return params, map[string]float64{
		"inertia":    inertia,
		"n_clusters": float64(k),
	}, nil
}

func nearestCentroid(centroids [][]float64, sample []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(sample, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Predict scores samples with a trained model, loading it from disk if it is
// not already in memory.
func (m *ModelManager) Predict(ctx context.Context, modelID string, req *models.PredictionRequest) (*models.PredictionResult, error) {
	model, err := m.load(modelID)
	if err != nil {
		return nil, err
	}

	width := len(model.meta.FeatureNames)
	for i, row := range req.Features {
		if len(row) != width {
			return nil, utils.NewValidationErrorf(
				"feature row %d has %d values, model %s expects %d", i, len(row), modelID, width)
		}
	}

	result := &models.PredictionResult{
		ModelID:     modelID,
		ModelType:   model.meta.ModelType,
		Predictions: make([]float64, len(req.Features)),
	}

	switch model.meta.ModelType {
	case models.ModelLinearRegression, models.ModelRidgeRegression:
		for i, sample := range req.Features {
			result.Predictions[i] = predictLinear(model.params.Weights, sample)
		}
	case models.ModelLogisticRegression:
		result.Probabilities = make([]float64, len(req.Features))
		for i, sample := range req.Features {
			prob := sigmoid(predictLinear(model.params.Weights, sample))
			result.Probabilities[i] = prob
			if prob >= 0.5 {
				result.Predictions[i] = 1
			}
		}
	case models.ModelKMeans:
		for i, sample := range req.Features {
			result.Predictions[i] = float64(nearestCentroid(model.params.Centroids, sample))
		}
	default:
		return nil, utils.NewValidationErrorf("model %s has unsupported type %s", modelID, model.meta.ModelType)
	}

	return result, nil
}

// GetModel returns the metadata of a trained model.
func (m *ModelManager) GetModel(ctx context.Context, modelID string) (*models.ModelMetadata, error) {
	model, err := m.load(modelID)
	if err != nil {
		return nil, err
	}
	meta := model.meta
	return &meta, nil
}

// ListModels returns a summary of every persisted model, newest first. A
// non-empty modelType keeps only models of that type.
func (m *ModelManager) ListModels(ctx context.Context, modelType models.ModelType) ([]models.ModelListItem, error) {
	entries, err := os.ReadDir(m.cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	items := make([]models.ModelListItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metadataSuffix) {
			continue
		}
		payload, err := os.ReadFile(filepath.Join(m.cfg.ModelsDir, entry.Name()))
		if err != nil {
			m.logger.WithError(err).WithField("file", entry.Name()).Warn("Skipping unreadable model metadata")
			continue
		}
		var meta models.ModelMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			m.logger.WithError(err).WithField("file", entry.Name()).Warn("Skipping corrupt model metadata")
			continue
		}
		if modelType != "" && meta.ModelType != modelType {
			continue
		}
		items = append(items, models.ModelListItem{
			ModelID:     meta.ModelID,
			ModelType:   meta.ModelType,
			Status:      meta.Status,
			SampleCount: meta.SampleCount,
			CreatedAt:   meta.CreatedAt,
		})
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[j].CreatedAt.After(items[i].CreatedAt) {
				items[i], items[j] = items[j], items[i]
			}
		}
	}
	return items, nil
}

// DeleteModel removes a model's artifacts and drops it from memory.
func (m *ModelManager) DeleteModel(ctx context.Context, modelID string) error {
	if _, err := m.load(modelID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.loaded, modelID)
	m.mu.Unlock()

	for _, suffix := range []string{paramsSuffix, metadataSuffix} {
		path := filepath.Join(m.cfg.ModelsDir, modelID+suffix)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	m.logger.WithField("model_id", modelID).Info("Model deleted")
	return nil
}

// load returns the in-memory handle for modelID, reading it from disk on
// first use.
func (m *ModelManager) load(modelID string) (*trainedModel, error) {
	m.mu.RLock()
	model, ok := m.loaded[modelID]
	m.mu.RUnlock()
	if ok {
		return model, nil
	}

	// Model ids are UUIDs; reject anything that could escape the models dir.
	if strings.ContainsAny(modelID, "/\\") || modelID == "" {
		return nil, utils.NewValidationErrorf("invalid model id: %q", modelID)
	}

	metaPayload, err := os.ReadFile(filepath.Join(m.cfg.ModelsDir, modelID+metadataSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.NewValidationErrorf("model %s not found", modelID)
		}
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	paramsPayload, err := os.ReadFile(filepath.Join(m.cfg.ModelsDir, modelID+paramsSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to read model parameters: %w", err)
	}

	model = &trainedModel{}
	if err := json.Unmarshal(metaPayload, &model.meta); err != nil {
		return nil, fmt.Errorf("corrupt model metadata for %s: %w", modelID, err)
	}
	if err := json.Unmarshal(paramsPayload, &model.params); err != nil {
		return nil, fmt.Errorf("corrupt model parameters for %s: %w", modelID, err)
	}

	m.mu.Lock()
	m.loaded[modelID] = model
	m.mu.Unlock()
	return model, nil
}

func (m *ModelManager) persist(model *trainedModel) error {
	metaPayload, err := json.MarshalIndent(model.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model metadata: %w", err)
	}
	paramsPayload, err := json.MarshalIndent(model.params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model parameters: %w", err)
	}

	id := model.meta.ModelID
	if err := os.WriteFile(filepath.Join(m.cfg.ModelsDir, id+paramsSuffix), paramsPayload, 0o644); err != nil {
		return fmt.Errorf("failed to write model parameters: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.ModelsDir, id+metadataSuffix), metaPayload, 0o644); err != nil {
		return fmt.Errorf("failed to write model metadata: %w", err)
	}
	return nil
}
