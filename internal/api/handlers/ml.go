package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/database"
	"github.com/statforge/statforge-go/internal/models"
)

// ModelManagerInterface defines the training and inference operations the
// handler depends on.
type ModelManagerInterface interface {
	Train(ctx context.Context, req *models.TrainingRequest) (*models.TrainingResult, error)
	Predict(ctx context.Context, modelID string, req *models.PredictionRequest) (*models.PredictionResult, error)
	GetModel(ctx context.Context, modelID string) (*models.ModelMetadata, error)
	ListModels(ctx context.Context, modelType models.ModelType) ([]models.ModelListItem, error)
	DeleteModel(ctx context.Context, modelID string) error
}

// TrainingLogRecorder persists model training log rows, best-effort.
type TrainingLogRecorder interface {
	RecordTraining(ctx context.Context, entry database.TrainingLogEntry) (*database.TrainingLogEntry, error)
}

// MLHandler handles model training, inference, and lifecycle endpoints.
type MLHandler struct {
	manager     ModelManagerInterface
	trainingLog TrainingLogRecorder
	logger      *logrus.Logger
}

// NewMLHandler creates an ML handler. trainingLog may be nil when the
// service runs without Postgres.
func NewMLHandler(manager ModelManagerInterface, trainingLog TrainingLogRecorder, logger *logrus.Logger) *MLHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &MLHandler{
		manager:     manager,
		trainingLog: trainingLog,
		logger:      logger,
	}
}

// Train trains a new model
// @Summary Train a model
// @Description Train a regression, classification, or clustering model and persist it
// @Tags ml
// @Accept json
// @Produce json
// @Success 200 {object} models.TrainingResult
// @Router /api/v1/ml/train [post]
func (h *MLHandler) Train(c *gin.Context) {
	var req models.TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.manager.Train(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordTrainingLog(c, result)
	respondOK(c, result)
}

// Predict scores samples with a trained model
// @Summary Predict with a model
// @Description Score new samples with a previously trained model
// @Tags ml
// @Accept json
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} models.PredictionResult
// @Router /api/v1/ml/predict/{id} [post]
func (h *MLHandler) Predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.manager.Predict(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// ListModels lists all trained models
// @Summary List models
// @Description List persisted models, newest first, optionally filtered by type
// @Tags ml
// @Produce json
// @Param model_type query string false "Filter by model type"
// @Success 200 {array} models.ModelListItem
// @Router /api/v1/ml/models [get]
func (h *MLHandler) ListModels(c *gin.Context) {
	items, err := h.manager.ListModels(c.Request.Context(), models.ModelType(c.Query("model_type")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, items)
}

// GetModel returns a model's metadata
// @Summary Get model metadata
// @Tags ml
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} models.ModelMetadata
// @Router /api/v1/ml/models/{id} [get]
func (h *MLHandler) GetModel(c *gin.Context) {
	meta, err := h.manager.GetModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, meta)
}

// DeleteModel removes a trained model
// @Summary Delete a model
// @Tags ml
// @Produce json
// @Param id path string true "Model ID"
// @Router /api/v1/ml/models/{id} [delete]
func (h *MLHandler) DeleteModel(c *gin.Context) {
	modelID := c.Param("id")
	if err := h.manager.DeleteModel(c.Request.Context(), modelID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"model_id": modelID, "deleted": true})
}

func (h *MLHandler) recordTrainingLog(c *gin.Context, result *models.TrainingResult) {
	if h.trainingLog == nil {
		return
	}

	meta, err := h.manager.GetModel(c.Request.Context(), result.ModelID)
	if err != nil {
		h.logger.WithError(err).WithField("model_id", result.ModelID).
			Warn("Failed to load metadata for training log")
		return
	}

	hyper, _ := json.Marshal(meta.Hyperparams)
	metrics, _ := json.Marshal(meta.Metrics)
	entry := database.TrainingLogEntry{
		Timestamp:        time.Now().UTC(),
		ModelID:          meta.ModelID,
		ModelType:        string(meta.ModelType),
		TrainingDataHash: meta.TrainingDataHash,
		Hyperparameters:  hyper,
		Metrics:          metrics,
		Status:           string(meta.Status),
	}
	if _, err := h.trainingLog.RecordTraining(c.Request.Context(), entry); err != nil {
		h.logger.WithError(err).WithField("model_id", meta.ModelID).
			Warn("Failed to record training log")
	}
}
