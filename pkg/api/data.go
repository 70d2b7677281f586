package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockcast/platform/pkg/dataset"
)

type dataHandler struct {
	service  *dataset.Service
	maxBytes int64
}

func (h *dataHandler) register(router *mux.Router) {
	router.HandleFunc("/data/upload", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/data", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/data/{fileId}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/data/{fileId}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *dataHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("expected multipart form with a file field"))
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("unable to read uploaded file"))
		return
	}

	record, err := h.service.Upload(content, header.Filename)
	if err != nil {
		if errors.Is(err, dataset.ErrInvalidCSV) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *dataHandler) handleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *dataHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]
	file, ok, err := h.service.Get(fileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, dataset.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *dataHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]
	if err := h.service.Delete(fileID); err != nil {
		switch {
		case errors.Is(err, dataset.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, dataset.ErrInUse):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileId": fileID, "status": "deleted"})
}
