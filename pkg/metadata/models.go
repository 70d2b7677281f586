package metadata

const (
	DataFileValid   = "valid"
	DataFileInvalid = "invalid"
	DataFileDeleted = "deleted"

	ModelTraining = "training"
	ModelReady    = "ready"
	ModelFailed   = "failed"
	ModelDeleted  = "deleted"

	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DataFile struct {
	FileID           string    `json:"fileId"`
	FileName         string    `json:"fileName"`
	OriginalFileName string    `json:"originalFileName"`
	FilePath         string    `json:"filePath"`
	UploadedAt       string    `json:"uploadedAt"`
	DateRange        DateRange `json:"dateRange"`
	RowCount         int       `json:"rowCount"`
	Columns          []string  `json:"columns"`
	FileSizeBytes    int64     `json:"fileSizeBytes"`
	Status           string    `json:"status"`
}

type Metrics struct {
	TrainLoss float64 `json:"trainLoss"`
	ValLoss   float64 `json:"valLoss"`
	TrainMAE  float64 `json:"trainMAE"`
	ValMAE    float64 `json:"valMAE"`
}

type Hyperparameters struct {
	HiddenUnits1   int     `json:"hiddenUnits1"`
	HiddenUnits2   int     `json:"hiddenUnits2"`
	Dropout        float64 `json:"dropout"`
	LearningRate   float64 `json:"learningRate"`
	BatchSize      int     `json:"batchSize"`
	Epochs         int     `json:"epochs"`
	LookbackWindow int     `json:"lookbackWindow"`
}

type Model struct {
	ModelID          string          `json:"modelId"`
	ModelName        string          `json:"modelName"`
	ModelPath        string          `json:"modelPath"`
	TrainedAt        string          `json:"trainedAt"`
	TrainingDuration float64         `json:"trainingDuration"`
	DataFileID       string          `json:"dataFileId"`
	DataFileName     string          `json:"dataFileName"`
	PredictionDays   int             `json:"predictionDays"`
	Metrics          Metrics         `json:"metrics"`
	Hyperparameters  Hyperparameters `json:"hyperparameters"`
	TrainingTaskID   string          `json:"trainingTaskId"`
	Status           string          `json:"status"`
}

type TrainingProgress struct {
	CurrentEpoch   int     `json:"currentEpoch"`
	TotalEpochs    int     `json:"totalEpochs"`
	CurrentLoss    float64 `json:"currentLoss"`
	CurrentValLoss float64 `json:"currentValLoss"`
}

type TrainingTask struct {
	TaskID         string            `json:"taskId"`
	ModelName      string            `json:"modelName"`
	DataFileID     string            `json:"dataFileId"`
	PredictionDays int               `json:"predictionDays"`
	Status         string            `json:"status"`
	StartedAt      string            `json:"startedAt"`
	CompletedAt    string            `json:"completedAt,omitempty"`
	Duration       float64           `json:"duration,omitempty"`
	Progress       *TrainingProgress `json:"progress,omitempty"`
	ResultModelID  string            `json:"resultModelId,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Document is the single versioned record holding every entity collection.
type Document struct {
	Version       string         `json:"version"`
	LastUpdated   string         `json:"lastUpdated"`
	DataFiles     []DataFile     `json:"dataFiles"`
	Models        []Model        `json:"models"`
	TrainingTasks []TrainingTask `json:"trainingTasks"`
}
