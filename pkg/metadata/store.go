// Package metadata persists data files, models and training tasks as one
// JSON document with atomic rename writes.
package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stockcast/platform/pkg/common/dateutil"
	"github.com/stockcast/platform/pkg/common/logger"
)

const documentVersion = "1.0"

// Store serializes every read and write through one lock. The document is
// small and metadata operations are off the hot path, so coarse locking
// keeps the file consistent without reader/writer coordination.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: path}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if s.sweepInterrupted(doc) {
		if err := s.write(doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// sweepInterrupted fails any task left pending or running by a previous
// process; worker goroutines do not survive a restart.
func (s *Store) sweepInterrupted(doc *Document) bool {
	swept := false
	for i := range doc.TrainingTasks {
		task := &doc.TrainingTasks[i]
		if task.Status == TaskPending || task.Status == TaskRunning {
			task.Status = TaskFailed
			task.Error = "interrupted by process restart"
			task.CompletedAt = dateutil.NowISO()
			swept = true
			logger.Log.WithField("task_id", task.TaskID).Warn("failing training task interrupted by restart")
		}
	}
	return swept
}

func emptyDocument() *Document {
	return &Document{
		Version:       documentVersion,
		DataFiles:     []DataFile{},
		Models:        []Model{},
		TrainingTasks: []TrainingTask{},
	}
}

// read loads the document, reinitializing it when the backing file is
// missing or corrupt. Corruption is recovered for availability but logged
// loudly since it discards the previous contents.
func (s *Store) read() (*Document, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := emptyDocument()
		if werr := s.write(doc); werr != nil {
			return nil, werr
		}
		return doc, nil
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(content, &doc); err != nil {
		logger.Log.WithError(err).WithField("path", s.path).Error("metadata document corrupt, reinitializing")
		fresh := emptyDocument()
		if werr := s.write(fresh); werr != nil {
			return nil, werr
		}
		return fresh, nil
	}

	if doc.DataFiles == nil {
		doc.DataFiles = []DataFile{}
	}
	if doc.Models == nil {
		doc.Models = []Model{}
	}
	if doc.TrainingTasks == nil {
		doc.TrainingTasks = []TrainingTask{}
	}
	return &doc, nil
}

// write stamps lastUpdated and replaces the canonical file via a temporary
// sibling and an atomic rename, so readers never observe a partial write.
func (s *Store) write(doc *Document) error {
	if doc.Version == "" {
		doc.Version = documentVersion
	}
	doc.LastUpdated = time.Now().Format(time.RFC3339)

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// ==================== data files ====================

func (s *Store) AddDataFile(file DataFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.DataFiles = append(doc.DataFiles, file)
	return s.write(doc)
}

func (s *Store) GetDataFile(fileID string) (DataFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return DataFile{}, false, err
	}
	for _, file := range doc.DataFiles {
		if file.FileID == fileID {
			return file, true, nil
		}
	}
	return DataFile{}, false, nil
}

func (s *Store) ListDataFiles(includeDeleted bool) ([]DataFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	files := make([]DataFile, 0, len(doc.DataFiles))
	for _, file := range doc.DataFiles {
		if !includeDeleted && file.Status == DataFileDeleted {
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

// UpdateDataFile applies a mutation to the record in place. The bool
// reports whether the ID existed; absence is a negative result, not an
// error.
func (s *Store) UpdateDataFile(fileID string, apply func(*DataFile)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	for i := range doc.DataFiles {
		if doc.DataFiles[i].FileID == fileID {
			apply(&doc.DataFiles[i])
			return true, s.write(doc)
		}
	}
	return false, nil
}

func (s *Store) DeleteDataFile(fileID string, soft bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	if soft {
		for i := range doc.DataFiles {
			if doc.DataFiles[i].FileID == fileID {
				doc.DataFiles[i].Status = DataFileDeleted
				return true, s.write(doc)
			}
		}
		return false, nil
	}
	kept := doc.DataFiles[:0]
	for _, file := range doc.DataFiles {
		if file.FileID != fileID {
			kept = append(kept, file)
		}
	}
	if len(kept) == len(doc.DataFiles) {
		return false, nil
	}
	doc.DataFiles = kept
	return true, s.write(doc)
}

// ==================== models ====================

func (s *Store) AddModel(model Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Models = append(doc.Models, model)
	return s.write(doc)
}

func (s *Store) GetModel(modelID string) (Model, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return Model{}, false, err
	}
	for _, model := range doc.Models {
		if model.ModelID == modelID {
			return model, true, nil
		}
	}
	return Model{}, false, nil
}

func (s *Store) ListModels(includeDeleted bool) ([]Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(doc.Models))
	for _, model := range doc.Models {
		if !includeDeleted && model.Status == ModelDeleted {
			continue
		}
		models = append(models, model)
	}
	return models, nil
}

func (s *Store) UpdateModel(modelID string, apply func(*Model)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	for i := range doc.Models {
		if doc.Models[i].ModelID == modelID {
			apply(&doc.Models[i])
			return true, s.write(doc)
		}
	}
	return false, nil
}

func (s *Store) DeleteModel(modelID string, soft bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	if soft {
		for i := range doc.Models {
			if doc.Models[i].ModelID == modelID {
				doc.Models[i].Status = ModelDeleted
				return true, s.write(doc)
			}
		}
		return false, nil
	}
	kept := doc.Models[:0]
	for _, model := range doc.Models {
		if model.ModelID != modelID {
			kept = append(kept, model)
		}
	}
	if len(kept) == len(doc.Models) {
		return false, nil
	}
	doc.Models = kept
	return true, s.write(doc)
}

// ==================== training tasks ====================

func (s *Store) AddTrainingTask(task TrainingTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.TrainingTasks = append(doc.TrainingTasks, task)
	return s.write(doc)
}

func (s *Store) GetTrainingTask(taskID string) (TrainingTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return TrainingTask{}, false, err
	}
	for _, task := range doc.TrainingTasks {
		if task.TaskID == taskID {
			return task, true, nil
		}
	}
	return TrainingTask{}, false, nil
}

func (s *Store) ListTrainingTasks() ([]TrainingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	tasks := make([]TrainingTask, len(doc.TrainingTasks))
	copy(tasks, doc.TrainingTasks)
	return tasks, nil
}

func (s *Store) UpdateTrainingTask(taskID string, apply func(*TrainingTask)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	for i := range doc.TrainingTasks {
		if doc.TrainingTasks[i].TaskID == taskID {
			apply(&doc.TrainingTasks[i])
			return true, s.write(doc)
		}
	}
	return false, nil
}
