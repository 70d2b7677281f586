// Package ids generates the type-prefixed opaque identifiers used across
// the metadata document.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

func NewFileID() string {
	return "file_" + short()
}

func NewModelID() string {
	return "model_" + short()
}

func NewTaskID() string {
	return "task_" + short()
}

func short() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
