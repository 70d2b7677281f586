package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockcast/platform/pkg/common/dateutil"
	"github.com/stockcast/platform/pkg/common/ids"
	"github.com/stockcast/platform/pkg/common/logger"
	"github.com/stockcast/platform/pkg/metadata"
)

var (
	ErrNotFound   = errors.New("data file not found")
	ErrInUse      = errors.New("data file is referenced by a model")
	ErrInvalidCSV = errors.New("CSV validation failed")
)

type Service struct {
	store          *metadata.Store
	dataDir        string
	maxUploadBytes int64
	minRows        int
	maxRows        int
}

func NewService(store *metadata.Store, dataDir string, maxUploadBytes int64, minRows, maxRows int) (*Service, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Service{
		store:          store,
		dataDir:        dataDir,
		maxUploadBytes: maxUploadBytes,
		minRows:        minRows,
		maxRows:        maxRows,
	}, nil
}

// Upload validates the CSV content and, on success, stores the file and
// registers a valid DataFile record.
func (s *Service) Upload(content []byte, originalName string) (metadata.DataFile, error) {
	if len(content) == 0 {
		return metadata.DataFile{}, fmt.Errorf("%w: file is empty", ErrInvalidCSV)
	}
	if int64(len(content)) > s.maxUploadBytes {
		return metadata.DataFile{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidCSV, s.maxUploadBytes)
	}

	fileID := ids.NewFileID()
	safeName := safeFileName(fileID, originalName)
	finalPath := filepath.Join(s.dataDir, safeName)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return metadata.DataFile{}, err
	}

	series, err := LoadCSV(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return metadata.DataFile{}, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if msgs := Validate(series, s.minRows, s.maxRows); len(msgs) > 0 {
		os.Remove(tmpPath)
		return metadata.DataFile{}, fmt.Errorf("%w: %s", ErrInvalidCSV, strings.Join(msgs, "; "))
	}

	start, end, err := series.DateRange()
	if err != nil {
		os.Remove(tmpPath)
		return metadata.DataFile{}, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return metadata.DataFile{}, err
	}

	file := metadata.DataFile{
		FileID:           fileID,
		FileName:         safeName,
		OriginalFileName: originalName,
		FilePath:         finalPath,
		UploadedAt:       dateutil.NowISO(),
		DateRange: metadata.DateRange{
			Start: dateutil.FormatISO(start),
			End:   dateutil.FormatISO(end),
		},
		RowCount:      series.Len(),
		Columns:       series.Columns,
		FileSizeBytes: int64(len(content)),
		Status:        metadata.DataFileValid,
	}
	if err := s.store.AddDataFile(file); err != nil {
		os.Remove(finalPath)
		return metadata.DataFile{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"file_id":   fileID,
		"rows":      file.RowCount,
		"file_name": originalName,
	}).Info("data file uploaded")
	return file, nil
}

func (s *Service) List() ([]metadata.DataFile, error) {
	return s.store.ListDataFiles(false)
}

func (s *Service) Get(fileID string) (metadata.DataFile, bool, error) {
	return s.store.GetDataFile(fileID)
}

// Load reads a registered file back into a series for training or
// prediction.
func (s *Service) Load(file metadata.DataFile) (*Series, error) {
	return LoadCSV(file.FilePath)
}

// Delete soft-deletes the record and removes the file on disk. A file
// referenced by any non-deleted model cannot be deleted.
func (s *Service) Delete(fileID string) error {
	file, ok, err := s.store.GetDataFile(fileID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}

	models, err := s.store.ListModels(false)
	if err != nil {
		return err
	}
	for _, model := range models {
		if model.DataFileID == fileID {
			return fmt.Errorf("%w: model %s", ErrInUse, model.ModelName)
		}
	}

	if rmErr := os.Remove(file.FilePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logger.Log.WithError(rmErr).WithField("file_id", fileID).Warn("failed to remove data file from disk")
	}

	_, err = s.store.DeleteDataFile(fileID, true)
	return err
}

// safeFileName prefixes the ID and strips path separators from the
// user-supplied name.
func safeFileName(fileID, originalName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(originalName)
	return fileID + "_" + name
}
