// Package training owns the TrainingTask lifecycle: pending -> running ->
// completed | failed. Terminal states are final; a failed task is
// resubmitted as a new task, never retried in place.
package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stockcast/platform/pkg/common/dateutil"
	"github.com/stockcast/platform/pkg/common/ids"
	"github.com/stockcast/platform/pkg/common/kafka"
	"github.com/stockcast/platform/pkg/common/logger"
	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/metadata"
	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

var (
	ErrInvalidRequest   = errors.New("invalid training request")
	ErrDataFileNotFound = errors.New("data file not found")
	ErrDataFileNotValid = errors.New("data file is not valid")
)

// Defaults are the training-wide settings applied to every task.
type Defaults struct {
	LookbackWindow    int
	Epochs            int
	BatchSize         int
	ValidationSplit   float64
	TuningEnabled     bool
	MinPredictionDays int
	MaxPredictionDays int
}

type Service struct {
	store     *metadata.Store
	datasets  *dataset.Service
	backend   ml.Backend
	events    *kafka.Producer
	catalog   preprocess.IndicatorCatalog
	modelsDir string
	defaults  Defaults
	workerSem chan struct{}
}

func NewService(store *metadata.Store, datasets *dataset.Service, backend ml.Backend, events *kafka.Producer, catalog preprocess.IndicatorCatalog, modelsDir string, maxWorkers int, defaults Defaults) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, err
	}
	return &Service{
		store:     store,
		datasets:  datasets,
		backend:   backend,
		events:    events,
		catalog:   catalog,
		modelsDir: modelsDir,
		defaults:  defaults,
		workerSem: make(chan struct{}, maxWorkers),
	}, nil
}

// StartTraining validates the request, records a pending task and
// dispatches a background worker. It returns the task ID immediately;
// completion is observed only by polling the task.
func (s *Service) StartTraining(modelName, dataFileID string, predictionDays int) (string, error) {
	if modelName == "" {
		return "", fmt.Errorf("%w: model name is required", ErrInvalidRequest)
	}
	if predictionDays < s.defaults.MinPredictionDays || predictionDays > s.defaults.MaxPredictionDays {
		return "", fmt.Errorf("%w: prediction days must be between %d and %d",
			ErrInvalidRequest, s.defaults.MinPredictionDays, s.defaults.MaxPredictionDays)
	}

	file, ok, err := s.store.GetDataFile(dataFileID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDataFileNotFound, dataFileID)
	}
	if file.Status != metadata.DataFileValid {
		return "", fmt.Errorf("%w: %s has status %s", ErrDataFileNotValid, dataFileID, file.Status)
	}

	taskID := ids.NewTaskID()
	task := metadata.TrainingTask{
		TaskID:         taskID,
		ModelName:      modelName,
		DataFileID:     dataFileID,
		PredictionDays: predictionDays,
		Status:         metadata.TaskPending,
		StartedAt:      dateutil.NowISO(),
	}
	if err := s.store.AddTrainingTask(task); err != nil {
		return "", err
	}

	s.publish("training.started", taskID, map[string]interface{}{
		"model_name":   modelName,
		"data_file_id": dataFileID,
	})
	go s.run(taskID, modelName, dataFileID, predictionDays)

	return taskID, nil
}

func (s *Service) GetTask(taskID string) (metadata.TrainingTask, bool, error) {
	return s.store.GetTrainingTask(taskID)
}

func (s *Service) ListTasks() ([]metadata.TrainingTask, error) {
	return s.store.ListTrainingTasks()
}

// run executes one task on a background worker. The semaphore bounds
// concurrent training; a task past the limit stays pending until a slot
// frees. Failures land on the task record, never on a caller.
func (s *Service) run(taskID, modelName, dataFileID string, predictionDays int) {
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	start := time.Now()
	if err := s.execute(taskID, modelName, dataFileID, predictionDays, start); err != nil {
		s.failTask(taskID, modelName, err)
	}
}

func (s *Service) execute(taskID, modelName, dataFileID string, predictionDays int, start time.Time) error {
	if _, err := s.store.UpdateTrainingTask(taskID, func(t *metadata.TrainingTask) {
		t.Status = metadata.TaskRunning
	}); err != nil {
		return err
	}

	file, ok, err := s.store.GetDataFile(dataFileID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("data file %s disappeared before training", dataFileID)
	}

	series, err := s.datasets.Load(file)
	if err != nil {
		return fmt.Errorf("loading %s: %w", file.FilePath, err)
	}

	pre := preprocess.New(s.defaults.LookbackWindow, s.catalog)
	features := pre.SelectFeatures(series.Columns)
	matrix, err := series.Matrix(features)
	if err != nil {
		return err
	}
	scaled := pre.FitTransform(matrix)
	windows := pre.Windowize(scaled)
	if windows.Len() == 0 {
		return fmt.Errorf("no training windows: %d rows with lookback %d", series.Len(), pre.Lookback())
	}
	trainSet, valSet := windows.Split(s.defaults.ValidationSplit)

	hp := ml.Hyperparameters{
		HiddenUnits1:   64,
		HiddenUnits2:   32,
		Dropout:        0.2,
		LearningRate:   0.001,
		BatchSize:      s.defaults.BatchSize,
		Epochs:         s.defaults.Epochs,
		LookbackWindow: s.defaults.LookbackWindow,
	}

	logger.WithFields(map[string]interface{}{
		"task_id":       taskID,
		"model_name":    modelName,
		"train_samples": trainSet.Len(),
		"val_samples":   valSet.Len(),
	}).Info("training started")

	// Each progress write replaces the previous one; polling clients see
	// only the latest epoch.
	progress := func(epoch int, loss, valLoss float64) {
		_, uerr := s.store.UpdateTrainingTask(taskID, func(t *metadata.TrainingTask) {
			t.Progress = &metadata.TrainingProgress{
				CurrentEpoch:   epoch,
				TotalEpochs:    hp.Epochs,
				CurrentLoss:    loss,
				CurrentValLoss: valLoss,
			}
		})
		if uerr != nil {
			logger.Log.WithError(uerr).WithField("task_id", taskID).Error("failed to persist training progress")
		}
	}

	result, err := s.backend.Fit(trainSet, valSet, hp, s.defaults.TuningEnabled, progress)
	if err != nil {
		return fmt.Errorf("model fit: %w", err)
	}

	modelID := ids.NewModelID()
	modelPath := filepath.Join(s.modelsDir, modelID+".json")
	if err := s.backend.Save(result.Handle, modelPath); err != nil {
		return fmt.Errorf("saving model artifact: %w", err)
	}

	duration := time.Since(start).Seconds()
	model := metadata.Model{
		ModelID:          modelID,
		ModelName:        modelName,
		ModelPath:        modelPath,
		TrainedAt:        dateutil.NowISO(),
		TrainingDuration: duration,
		DataFileID:       dataFileID,
		DataFileName:     file.OriginalFileName,
		PredictionDays:   predictionDays,
		Metrics:          toEntityMetrics(result.Metrics),
		Hyperparameters:  toEntityHyperparameters(result.Hyperparameters),
		TrainingTaskID:   taskID,
		Status:           metadata.ModelReady,
	}
	if err := s.store.AddModel(model); err != nil {
		return fmt.Errorf("persisting model: %w", err)
	}

	if _, err := s.store.UpdateTrainingTask(taskID, func(t *metadata.TrainingTask) {
		t.Status = metadata.TaskCompleted
		t.CompletedAt = dateutil.NowISO()
		t.Duration = duration
		t.ResultModelID = modelID
	}); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"task_id":    taskID,
		"model_id":   modelID,
		"train_loss": result.Metrics.TrainLoss,
		"val_loss":   result.Metrics.ValLoss,
		"duration_s": duration,
	}).Info("training completed")

	s.publish("training.completed", taskID, map[string]interface{}{
		"model_id": modelID,
		"val_loss": result.Metrics.ValLoss,
	})
	return nil
}

func (s *Service) failTask(taskID, modelName string, cause error) {
	logger.Log.WithError(cause).WithFields(map[string]interface{}{
		"task_id":    taskID,
		"model_name": modelName,
	}).Error("training failed")

	if _, err := s.store.UpdateTrainingTask(taskID, func(t *metadata.TrainingTask) {
		t.Status = metadata.TaskFailed
		t.CompletedAt = dateutil.NowISO()
		t.Error = cause.Error()
	}); err != nil {
		logger.Log.WithError(err).WithField("task_id", taskID).Error("failed to mark task failed")
	}

	s.publish("training.failed", taskID, map[string]interface{}{
		"error": cause.Error(),
	})
}

func (s *Service) publish(eventType, taskID string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	data["task_id"] = taskID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishEvent(ctx, eventType, "training-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("event publish failed")
	}
}

func toEntityMetrics(m ml.Metrics) metadata.Metrics {
	return metadata.Metrics{
		TrainLoss: m.TrainLoss,
		ValLoss:   m.ValLoss,
		TrainMAE:  m.TrainMAE,
		ValMAE:    m.ValMAE,
	}
}

func toEntityHyperparameters(h ml.Hyperparameters) metadata.Hyperparameters {
	return metadata.Hyperparameters{
		HiddenUnits1:   h.HiddenUnits1,
		HiddenUnits2:   h.HiddenUnits2,
		Dropout:        h.Dropout,
		LearningRate:   h.LearningRate,
		BatchSize:      h.BatchSize,
		Epochs:         h.Epochs,
		LookbackWindow: h.LookbackWindow,
	}
}
