package seqnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

// Backend implements ml.Backend with the in-process seqnet trainer.
type Backend struct{}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) Fit(train, val *preprocess.WindowSet, hp ml.Hyperparameters, search bool, progress ml.ProgressFunc) (*ml.FitResult, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if train == nil || train.Len() == 0 {
		return nil, ml.ErrNoSamples
	}

	if search {
		chosen, err := Search(train, val, hp)
		if err != nil {
			return nil, err
		}
		hp = chosen
	}

	net, metrics, err := Train(train, val, hp, progress)
	if err != nil {
		return nil, err
	}
	return &ml.FitResult{
		Handle:          net,
		Metrics:         metrics,
		Hyperparameters: hp,
	}, nil
}

type artifactFile struct {
	Model struct {
		Type    string   `json:"type"`
		Network *Network `json:"network"`
	} `json:"model"`
	CreatedAt string `json:"createdAt"`
}

func (b *Backend) Save(handle ml.Artifact, path string) error {
	net, ok := handle.(*Network)
	if !ok {
		return fmt.Errorf("unexpected artifact type %T", handle)
	}

	var artifact artifactFile
	artifact.Model.Type = "seqnet"
	artifact.Model.Network = net
	artifact.CreatedAt = time.Now().Format(time.RFC3339)

	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func (b *Backend) Load(path string) (ml.Inference, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact artifactFile
	if err := json.Unmarshal(content, &artifact); err != nil {
		return nil, fmt.Errorf("unreadable model artifact: %w", err)
	}
	net := artifact.Model.Network
	if net == nil {
		return nil, errors.New("model artifact missing network weights")
	}

	return func(window []float64) (float64, error) {
		if len(window) != net.InputSize {
			return 0, fmt.Errorf("window length %d does not match model input %d", len(window), net.InputSize)
		}
		return net.Predict(window), nil
	}, nil
}
