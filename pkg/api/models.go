package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockcast/platform/pkg/registry"
)

type modelsHandler struct {
	service *registry.Service
}

func (h *modelsHandler) register(router *mux.Router) {
	router.HandleFunc("/models", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/models/compare", h.handleCompare).Methods(http.MethodPost)
	router.HandleFunc("/models/{modelId}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/models/{modelId}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *modelsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *modelsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.Get(mux.Vars(r)["modelId"])
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (h *modelsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["modelId"]
	if err := h.service.Delete(modelID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"modelId": modelID, "status": "deleted"})
}

type compareRequest struct {
	ModelIDs []string `json:"modelIds"`
}

func (h *modelsHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	comparison, err := h.service.Compare(req.ModelIDs)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrTooFewModels),
			errors.Is(err, registry.ErrTooManyModels),
			errors.Is(err, registry.ErrModelNotReady):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}
