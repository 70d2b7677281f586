package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockcast/platform/pkg/api"
	"github.com/stockcast/platform/pkg/common/config"
	"github.com/stockcast/platform/pkg/common/kafka"
	"github.com/stockcast/platform/pkg/common/logger"
	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/metadata"
	"github.com/stockcast/platform/pkg/ml/seqnet"
	"github.com/stockcast/platform/pkg/prediction"
	"github.com/stockcast/platform/pkg/preprocess"
	"github.com/stockcast/platform/pkg/registry"
	"github.com/stockcast/platform/pkg/training"
)

func main() {
	logger.Init()
	cfg := config.Load()

	store, err := metadata.NewStore(cfg.MetadataPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open metadata store")
	}

	catalog, err := preprocess.LoadCatalog(cfg.IndicatorCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load indicator catalog")
	}

	datasets, err := dataset.NewService(store, cfg.DataDir, cfg.MaxUploadBytes, cfg.MinDataRows, cfg.MaxDataRows)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize dataset service")
	}

	backend := seqnet.NewBackend()

	var events *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		events = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer events.Close()
	}

	trainer, err := training.NewService(store, datasets, backend, events, catalog, cfg.ModelsDir, cfg.MaxTrainingWorkers, training.Defaults{
		LookbackWindow:    cfg.LookbackWindow,
		Epochs:            cfg.Epochs,
		BatchSize:         cfg.BatchSize,
		ValidationSplit:   cfg.ValidationSplit,
		TuningEnabled:     cfg.TuningEnabled,
		MinPredictionDays: cfg.MinPredictionDays,
		MaxPredictionDays: cfg.MaxPredictionDays,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize training service")
	}

	var cache *prediction.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		cache = prediction.NewCache(client, cfg.PredictionCacheTTL)
	}

	models := registry.NewService(store)
	predictor := prediction.NewService(store, datasets, backend, catalog, cache)

	router := api.NewRouter(api.Services{
		Datasets:    datasets,
		Models:      models,
		Training:    trainer,
		Predictions: predictor,
	}, cfg.MaxUploadBytes)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Stockcast started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Stockcast stopped")
}
