// Package registry exposes trained models: listing, inspection,
// comparison and removal.
package registry

import (
	"errors"
	"os"

	"github.com/stockcast/platform/pkg/common/logger"
	"github.com/stockcast/platform/pkg/metadata"
)

var ErrNotFound = errors.New("model not found")

type Service struct {
	store *metadata.Store
}

func NewService(store *metadata.Store) *Service {
	return &Service{store: store}
}

func (s *Service) List() ([]metadata.Model, error) {
	return s.store.ListModels(false)
}

func (s *Service) Get(modelID string) (metadata.Model, error) {
	model, ok, err := s.store.GetModel(modelID)
	if err != nil {
		return metadata.Model{}, err
	}
	if !ok || model.Status == metadata.ModelDeleted {
		return metadata.Model{}, ErrNotFound
	}
	return model, nil
}

// Delete soft-deletes the model record and removes its artifact file. A
// missing artifact is not an error; the record removal is what matters.
func (s *Service) Delete(modelID string) error {
	model, err := s.Get(modelID)
	if err != nil {
		return err
	}

	if model.ModelPath != "" {
		if rmErr := os.Remove(model.ModelPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Log.WithError(rmErr).WithField("model_id", modelID).Warn("failed to remove model artifact")
		}
	}

	ok, err := s.store.DeleteModel(modelID, true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
