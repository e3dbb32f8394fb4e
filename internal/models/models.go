package models

import (
	"fmt"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
)

// BatchImage is one input unit of a batch decomposition request. Instances
// are built once during request validation and never mutated afterwards.
type BatchImage struct {
	ID    string `json:"id"`
	Index int    `json:"index"` // 1-based position, used in user-facing messages
	Name  string `json:"name"`
	Image string `json:"image"` // data-URI encoded image
}

// DefaultImageName returns the display label used when the caller supplied
// none.
func DefaultImageName(index int) string {
	return fmt.Sprintf("이미지 %d", index)
}

// Result item status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BatchResultItem is the per-image outcome of a batch run. Exactly one item
// is produced per BatchImage, in input order, and it is immutable once
// emitted.
type BatchResultItem struct {
	ID     string                  `json:"id"`
	Index  int                     `json:"index"`
	Name   string                  `json:"name"`
	Image  string                  `json:"image"`
	Status string                  `json:"status"`
	Prompt *string                 `json:"prompt"`
	Result *blocks.DecomposeResult `json:"result"`
	Error  *string                 `json:"error,omitempty"`
}

// Succeeded reports whether the item carries a usable analysis result.
func (it *BatchResultItem) Succeeded() bool {
	return it.Status == StatusSuccess && it.Result != nil
}

// Batch status values.
const (
	BatchIdle      = "idle"
	BatchRunning   = "running"
	BatchCompleted = "completed"
)

// BatchProgressState is a snapshot recomputed after every processed item.
// completed == succeeded + failed holds at every emission and all counts are
// monotonically non-decreasing across a stream.
type BatchProgressState struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	Percentage   int     `json:"percentage"`
	CurrentIndex int     `json:"currentIndex"`
	CurrentName  *string `json:"currentName"`
	Status       string  `json:"status"`
}

// Event type tags on the NDJSON wire.
const (
	EventProgress = "progress"
	EventComplete = "complete"
)

// ProgressEvent is emitted after each processed item.
type ProgressEvent struct {
	Type     string             `json:"type"`
	Progress BatchProgressState `json:"progress"`
	Item     BatchResultItem    `json:"item"`
}

// CompleteEvent is emitted exactly once, last, with the full ordered result
// list.
type CompleteEvent struct {
	Type     string             `json:"type"`
	Progress BatchProgressState `json:"progress"`
	Results  []BatchResultItem  `json:"results"`
}

// BlockToSave is one flattened (block type, content) pair chosen from a batch
// review for persistence into the library.
type BlockToSave struct {
	BlockType blocks.BlockType `json:"blockType"`
	Content   string           `json:"content"`
}
