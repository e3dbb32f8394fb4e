package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/models"
)

const testImage = "data:image/png;base64,aGVsbG8="

func TestParseImagesValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "not an array",
			raw:     `"just a string"`,
			wantErr: "images는 배열이어야 합니다.",
		},
		{
			name:    "null",
			raw:     `null`,
			wantErr: "images는 배열이어야 합니다.",
		},
		{
			name:    "empty array",
			raw:     `[]`,
			wantErr: "최소 1장의 이미지를 업로드해주세요.",
		},
		{
			name:    "too many images",
			raw:     sixImages(),
			wantErr: "이미지는 최대 5장까지 분석할 수 있습니다.",
		},
		{
			name:    "second item not a data URI",
			raw:     fmt.Sprintf(`[%q, "https://example.com/a.png"]`, testImage),
			wantErr: "2번째 이미지 형식이 올바르지 않습니다.",
		},
		{
			name:    "object item missing image",
			raw:     `[{"name": "첫 번째"}]`,
			wantErr: "1번째 이미지 형식이 올바르지 않습니다.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImages(json.RawMessage(tt.raw))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if validationErr.Message != tt.wantErr {
				t.Errorf("message = %q, want %q", validationErr.Message, tt.wantErr)
			}
		})
	}
}

func TestParseImagesDefaults(t *testing.T) {
	raw := fmt.Sprintf(`[%q, {"id": "abc", "name": "배경 샷", "image": %q}]`, testImage, testImage)

	imgs, err := ParseImages(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("expected 2 images, got %d", len(imgs))
	}

	first := imgs[0]
	if first.ID != "1" {
		t.Errorf("default ID = %q, want positional %q", first.ID, "1")
	}
	if first.Index != 1 {
		t.Errorf("index = %d, want 1", first.Index)
	}
	if first.Name != "이미지 1" {
		t.Errorf("default name = %q", first.Name)
	}

	second := imgs[1]
	if second.ID != "abc" || second.Name != "배경 샷" || second.Index != 2 {
		t.Errorf("unexpected second image: %+v", second)
	}
}

// scriptedAnalyzer fails for the image indices listed in failAt.
type scriptedAnalyzer struct {
	calls  int
	failAt map[int]error
}

func (a *scriptedAnalyzer) AnalyzeImage(ctx context.Context, image string) (string, *blocks.DecomposeResult, error) {
	a.calls++
	if err, ok := a.failAt[a.calls]; ok {
		return "", nil, err
	}
	result := &blocks.DecomposeResult{SubjectType: fmt.Sprintf("subject %d", a.calls)}
	return fmt.Sprintf("prompt %d", a.calls), result, nil
}

type collectingSink struct {
	events []any
}

func (s *collectingSink) Emit(event any) error {
	s.events = append(s.events, event)
	return nil
}

func makeBatch(n int) []models.BatchImage {
	imgs := make([]models.BatchImage, 0, n)
	for i := 1; i <= n; i++ {
		imgs = append(imgs, models.BatchImage{
			ID:    fmt.Sprintf("%d", i),
			Index: i,
			Name:  models.DefaultImageName(i),
			Image: testImage,
		})
	}
	return imgs
}

func TestRunEmitsOneProgressPerItemAndOneComplete(t *testing.T) {
	for size := 1; size <= 5; size++ {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			sink := &collectingSink{}
			orchestrator := NewOrchestrator(&scriptedAnalyzer{})

			if err := orchestrator.Run(context.Background(), makeBatch(size), sink); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(sink.events) != size+1 {
				t.Fatalf("expected %d events, got %d", size+1, len(sink.events))
			}
			for i := 0; i < size; i++ {
				if _, ok := sink.events[i].(models.ProgressEvent); !ok {
					t.Errorf("event %d is %T, want ProgressEvent", i, sink.events[i])
				}
			}
			if _, ok := sink.events[size].(models.CompleteEvent); !ok {
				t.Errorf("last event is %T, want CompleteEvent", sink.events[size])
			}
		})
	}
}

func TestRunProgressInvariants(t *testing.T) {
	sink := &collectingSink{}
	orchestrator := NewOrchestrator(&scriptedAnalyzer{
		failAt: map[int]error{2: fmt.Errorf("rate limited")},
	})

	if err := orchestrator.Run(context.Background(), makeBatch(3), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prevCompleted := 0
	prevIndex := 0
	for i := 0; i < 3; i++ {
		ev := sink.events[i].(models.ProgressEvent)
		p := ev.Progress

		if p.Completed != p.Succeeded+p.Failed {
			t.Errorf("event %d: completed=%d != succeeded+failed=%d", i, p.Completed, p.Succeeded+p.Failed)
		}
		if p.Completed != prevCompleted+1 {
			t.Errorf("event %d: completed jumped from %d to %d", i, prevCompleted, p.Completed)
		}
		if p.CurrentIndex <= prevIndex {
			t.Errorf("event %d: currentIndex %d not strictly increasing", i, p.CurrentIndex)
		}
		if p.Status != models.BatchRunning {
			t.Errorf("event %d: status = %q, want running", i, p.Status)
		}
		if p.CurrentName == nil {
			t.Errorf("event %d: currentName should be set", i)
		}
		prevCompleted = p.Completed
		prevIndex = p.CurrentIndex
	}

	complete := sink.events[3].(models.CompleteEvent)
	final := complete.Progress
	if final.Status != models.BatchCompleted {
		t.Errorf("final status = %q", final.Status)
	}
	if final.CurrentIndex != 3 || final.CurrentName != nil {
		t.Errorf("final currentIndex=%d currentName=%v", final.CurrentIndex, final.CurrentName)
	}
	if final.Succeeded != 2 || final.Failed != 1 || final.Percentage != 100 {
		t.Errorf("final counts: %+v", final)
	}
}

func TestRunPartialFailureKeepsOrder(t *testing.T) {
	sink := &collectingSink{}
	orchestrator := NewOrchestrator(&scriptedAnalyzer{
		failAt: map[int]error{2: fmt.Errorf("rate limited")},
	})

	if err := orchestrator.Run(context.Background(), makeBatch(3), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	complete := sink.events[len(sink.events)-1].(models.CompleteEvent)
	if len(complete.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(complete.Results))
	}

	for i, item := range complete.Results {
		if item.Index != i+1 {
			t.Errorf("result %d has index %d, order broken", i, item.Index)
		}
	}

	if complete.Results[0].Status != models.StatusSuccess {
		t.Error("first item should succeed")
	}
	if complete.Results[1].Status != models.StatusError {
		t.Error("second item should fail")
	}
	if complete.Results[1].Error == nil || *complete.Results[1].Error != "rate limited" {
		t.Errorf("error message = %v, want rate limited", complete.Results[1].Error)
	}
	if complete.Results[1].Prompt != nil || complete.Results[1].Result != nil {
		t.Error("failed item must carry nil prompt and result")
	}
	if complete.Results[2].Status != models.StatusSuccess {
		t.Error("third item should succeed after a mid-batch failure")
	}
}

func TestRunStopsBetweenItemsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	analyzer := &scriptedAnalyzer{}
	sink := &collectingSink{}
	orchestrator := NewOrchestrator(&cancellingAnalyzer{inner: analyzer, cancel: cancel, after: 1})

	err := orchestrator.Run(ctx, makeBatch(3), sink)
	if err == nil {
		t.Fatal("expected context error")
	}
	if analyzer.calls != 1 {
		t.Errorf("analyzer called %d times after cancel, want 1", analyzer.calls)
	}
	// The in-flight item's progress event still goes out; no complete event does.
	for _, ev := range sink.events {
		if _, ok := ev.(models.CompleteEvent); ok {
			t.Error("complete event emitted after cancellation")
		}
	}
}

// cancellingAnalyzer cancels the run's context after n successful calls.
type cancellingAnalyzer struct {
	inner  *scriptedAnalyzer
	cancel context.CancelFunc
	after  int
}

func (a *cancellingAnalyzer) AnalyzeImage(ctx context.Context, image string) (string, *blocks.DecomposeResult, error) {
	prompt, result, err := a.inner.AnalyzeImage(ctx, image)
	if a.inner.calls == a.after {
		a.cancel()
	}
	return prompt, result, err
}

func sixImages() string {
	entries := make([]string, 6)
	for i := range entries {
		entries[i] = fmt.Sprintf("%q", testImage)
	}
	return "[" + strings.Join(entries, ",") + "]"
}
