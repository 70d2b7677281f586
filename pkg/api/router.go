package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stockcast/platform/pkg/common/logger"
	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/prediction"
	"github.com/stockcast/platform/pkg/registry"
	"github.com/stockcast/platform/pkg/training"
)

// Services bundles everything the router serves.
type Services struct {
	Datasets    *dataset.Service
	Models      *registry.Service
	Training    *training.Service
	Predictions *prediction.Service
}

func NewRouter(services Services, maxUploadBytes int64) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogging)

	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	(&dataHandler{service: services.Datasets, maxBytes: maxUploadBytes}).register(v1)
	(&modelsHandler{service: services.Models}).register(v1)
	(&trainingHandler{service: services.Training}).register(v1)
	(&predictionsHandler{service: services.Predictions}).register(v1)

	return router
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	})
}
