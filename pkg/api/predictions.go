package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockcast/platform/pkg/prediction"
)

type predictionsHandler struct {
	service *prediction.Service
}

func (h *predictionsHandler) register(router *mux.Router) {
	router.HandleFunc("/predictions", h.handlePredict).Methods(http.MethodPost)
}

type predictRequest struct {
	ModelID    string `json:"modelId"`
	DataFileID string `json:"dataFileId"`
	StartDate  string `json:"startDate"`
}

func (h *predictionsHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.ModelID == "" || req.DataFileID == "" || req.StartDate == "" {
		writeError(w, http.StatusBadRequest, errors.New("modelId, dataFileId and startDate are required"))
		return
	}

	result, err := h.service.Predict(r.Context(), req.ModelID, req.DataFileID, req.StartDate)
	if err != nil {
		switch {
		case errors.Is(err, prediction.ErrModelNotFound), errors.Is(err, prediction.ErrDataFileNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, prediction.ErrModelNotReady),
			errors.Is(err, prediction.ErrDataFileNotValid),
			errors.Is(err, prediction.ErrBadDate),
			errors.Is(err, prediction.ErrDateOutOfRange),
			errors.Is(err, prediction.ErrInsufficientHistory):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}
