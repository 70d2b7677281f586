package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockcast/platform/pkg/training"
)

type trainingHandler struct {
	service *training.Service
}

func (h *trainingHandler) register(router *mux.Router) {
	router.HandleFunc("/training/start", h.handleStart).Methods(http.MethodPost)
	router.HandleFunc("/training/tasks", h.handleListTasks).Methods(http.MethodGet)
	router.HandleFunc("/training/tasks/{taskId}", h.handleGetTask).Methods(http.MethodGet)
}

type startTrainingRequest struct {
	ModelName      string `json:"modelName"`
	DataFileID     string `json:"dataFileId"`
	PredictionDays int    `json:"predictionDays"`
}

func (h *trainingHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	taskID, err := h.service.StartTraining(req.ModelName, req.DataFileID, req.PredictionDays)
	if err != nil {
		switch {
		case errors.Is(err, training.ErrInvalidRequest), errors.Is(err, training.ErrDataFileNotValid):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, training.ErrDataFileNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID, "status": "pending"})
}

func (h *trainingHandler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *trainingHandler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]
	task, ok, err := h.service.GetTask(taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("training task not found"))
		return
	}
	writeJSON(w, http.StatusOK, task)
}
