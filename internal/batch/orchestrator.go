package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/images"
	"github.com/prompt-atelier/promptblocks/internal/models"
)

// MaxImages bounds the batch size.
const MaxImages = 5

// User-facing validation and failure messages.
const (
	msgNotArray     = "images는 배열이어야 합니다."
	msgEmpty        = "최소 1장의 이미지를 업로드해주세요."
	msgTooMany      = "이미지는 최대 %d장까지 분석할 수 있습니다."
	msgBadItem      = "%d번째 이미지 형식이 올바르지 않습니다."
	msgItemFallback = "%d번째 이미지 분석에 실패했습니다."
)

// ValidationError rejects a request before the stream opens. Its message is
// shown to the user verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Analyzer is the single-item collaborator: it turns one image into a
// reconstructed prompt plus its block fragments.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image string) (string, *blocks.DecomposeResult, error)
}

// EventSink receives each NDJSON event as it is produced.
type EventSink interface {
	Emit(event any) error
}

// ParseImages builds the validated, ordered BatchImage list from the raw
// request payload. Each element may be a bare data-URI string or an object
// with optional id/name. Returns a ValidationError on any shape problem.
func ParseImages(raw json.RawMessage) ([]models.BatchImage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Message: msgNotArray}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, &ValidationError{Message: msgNotArray}
	}

	if len(entries) == 0 {
		return nil, &ValidationError{Message: msgEmpty}
	}
	if len(entries) > MaxImages {
		return nil, &ValidationError{Message: fmt.Sprintf(msgTooMany, MaxImages)}
	}

	batch := make([]models.BatchImage, 0, len(entries))
	for i, entry := range entries {
		index := i + 1

		img, err := parseImageEntry(entry, index)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf(msgBadItem, index)}
		}
		batch = append(batch, img)
	}

	return batch, nil
}

func parseImageEntry(entry json.RawMessage, index int) (models.BatchImage, error) {
	img := models.BatchImage{Index: index}

	// A bare string is shorthand for {image: "..."}.
	var asString string
	if err := json.Unmarshal(entry, &asString); err == nil {
		img.Image = asString
	} else {
		var asObject struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Image string `json:"image"`
		}
		if err := json.Unmarshal(entry, &asObject); err != nil {
			return img, err
		}
		img.ID = asObject.ID
		img.Name = asObject.Name
		img.Image = asObject.Image
	}

	if !images.IsImageDataURI(img.Image) {
		return img, fmt.Errorf("not an image data URI")
	}

	if img.ID == "" {
		img.ID = strconv.Itoa(index)
	}
	if strings.TrimSpace(img.Name) == "" {
		img.Name = models.DefaultImageName(index)
	}

	return img, nil
}

// Orchestrator runs a validated batch strictly sequentially, emitting one
// progress event per item and a single terminal complete event.
type Orchestrator struct {
	analyzer Analyzer
}

// NewOrchestrator creates an orchestrator bound to the given analyzer.
func NewOrchestrator(analyzer Analyzer) *Orchestrator {
	return &Orchestrator{analyzer: analyzer}
}

// Run processes the batch. Per-item analysis failures are recorded and the
// loop continues; only a cancelled context or a sink write failure aborts the
// run early. The cancellation check happens between items, never mid-call.
func (o *Orchestrator) Run(ctx context.Context, batch []models.BatchImage, sink EventSink) error {
	total := len(batch)
	results := make([]models.BatchResultItem, 0, total)
	succeeded, failed := 0, 0

	for _, img := range batch {
		if err := ctx.Err(); err != nil {
			slog.Info("Batch cancelled", "completed", len(results), "total", total)
			return err
		}

		item := o.processItem(ctx, img)
		if item.Status == models.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
		results = append(results, item)

		name := img.Name
		progress := computeProgress(total, succeeded, failed, img.Index, &name, models.BatchRunning)

		if err := sink.Emit(models.ProgressEvent{
			Type:     models.EventProgress,
			Progress: progress,
			Item:     item,
		}); err != nil {
			return fmt.Errorf("failed to emit progress event: %w", err)
		}
	}

	final := computeProgress(total, succeeded, failed, total, nil, models.BatchCompleted)
	if err := sink.Emit(models.CompleteEvent{
		Type:     models.EventComplete,
		Progress: final,
		Results:  results,
	}); err != nil {
		return fmt.Errorf("failed to emit complete event: %w", err)
	}

	slog.Info("Batch completed", "total", total, "succeeded", succeeded, "failed", failed)
	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, img models.BatchImage) models.BatchResultItem {
	item := models.BatchResultItem{
		ID:    img.ID,
		Index: img.Index,
		Name:  img.Name,
		Image: img.Image,
	}

	prompt, result, err := o.analyzer.AnalyzeImage(ctx, img.Image)
	if err != nil {
		message := strings.TrimSpace(err.Error())
		if message == "" {
			message = fmt.Sprintf(msgItemFallback, img.Index)
		}
		slog.Warn("Image analysis failed", "index", img.Index, "name", img.Name, "error", err)

		item.Status = models.StatusError
		item.Error = &message
		return item
	}

	item.Status = models.StatusSuccess
	item.Prompt = &prompt
	item.Result = result
	return item
}

func computeProgress(total, succeeded, failed, currentIndex int, currentName *string, status string) models.BatchProgressState {
	completed := succeeded + failed

	percentage := 100
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}

	return models.BatchProgressState{
		Total:        total,
		Completed:    completed,
		Succeeded:    succeeded,
		Failed:       failed,
		Percentage:   percentage,
		CurrentIndex: currentIndex,
		CurrentName:  currentName,
		Status:       status,
	}
}
