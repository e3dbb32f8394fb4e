package decompose

import (
	"context"
	"strings"
	"testing"

	"github.com/prompt-atelier/promptblocks/internal/providers"
)

const testImage = "data:image/png;base64,aGVsbG8="

func TestParseReply(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantPrompt string
		wantErr    bool
	}{
		{
			name:       "plain JSON",
			reply:      `{"prompt": "a cat", "blocks": {"subject_type": "cat"}}`,
			wantPrompt: "a cat",
		},
		{
			name: "fenced JSON",
			reply: "```json\n" +
				`{"prompt": "a dog", "blocks": {"subject_type": "dog"}}` +
				"\n```",
			wantPrompt: "a dog",
		},
		{
			name: "bare fence",
			reply: "```\n" +
				`{"prompt": "a bird", "blocks": {}}` +
				"\n```",
			wantPrompt: "a bird",
		},
		{
			name:    "not JSON",
			reply:   "Sorry, I cannot analyze this image.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := ParseReply(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.Prompt != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", outcome.Prompt, tt.wantPrompt)
			}
			if outcome.Result == nil {
				t.Fatal("result must never be nil on success")
			}
		})
	}
}

func TestParseReplyAlwaysPopulatesAllBlocks(t *testing.T) {
	outcome, err := ParseReply(`{"prompt": "x", "blocks": {"style": "anime"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Result.Style != "anime" {
		t.Errorf("style = %q", outcome.Result.Style)
	}
	// Missing keys come back as empty strings, never absent.
	if outcome.Result.Lighting != "" || outcome.Result.Camera != "" {
		t.Errorf("missing keys should be empty: %+v", outcome.Result)
	}
}

// cannedProvider returns a fixed reply.
type cannedProvider struct {
	reply   string
	lastReq providers.Request
}

func (p *cannedProvider) Analyze(ctx context.Context, req providers.Request) (string, error) {
	p.lastReq = req
	return p.reply, nil
}

func TestDecompose(t *testing.T) {
	provider := &cannedProvider{reply: `{"prompt": "a cat, watercolor", "blocks": {"subject_type": "cat", "style": "watercolor"}}`}
	service := NewServiceWithProviders(map[string]providers.Provider{
		providers.GPT: provider,
	})

	outcome, err := service.Decompose(context.Background(), Request{
		Image:    testImage,
		Provider: providers.GPT,
		APIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Prompt != "a cat, watercolor" {
		t.Errorf("prompt = %q", outcome.Prompt)
	}
	if outcome.Result.SubjectType != "cat" {
		t.Errorf("subject_type = %q", outcome.Result.SubjectType)
	}
	if provider.lastReq.Model != "gpt-4o" {
		t.Errorf("default model = %q, want gpt-4o", provider.lastReq.Model)
	}
	if provider.lastReq.ImageMIME != "image/png" {
		t.Errorf("image MIME = %q", provider.lastReq.ImageMIME)
	}
}

func TestDecomposeRejectsUnsupportedProvider(t *testing.T) {
	service := NewService()

	_, err := service.Decompose(context.Background(), Request{
		Image:    testImage,
		Provider: "claude",
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecomposeRejectsOversizedPreamble(t *testing.T) {
	service := NewServiceWithProviders(map[string]providers.Provider{
		providers.GPT: &cannedProvider{},
	})

	_, err := service.Decompose(context.Background(), Request{
		Image:        testImage,
		Provider:     providers.GPT,
		ModePreamble: strings.Repeat("a", MaxPreambleLength+1),
	})
	if err == nil {
		t.Error("expected error for oversized preamble")
	}
}

func TestBuildDecomposePromptIncludesPreamble(t *testing.T) {
	prompt := buildDecomposePrompt("스튜디오 모드로 분석해주세요.")

	if !strings.HasPrefix(prompt, "스튜디오 모드로 분석해주세요.") {
		t.Error("preamble must lead the prompt")
	}
	if !strings.Contains(prompt, "subject_type") || !strings.Contains(prompt, "quality") {
		t.Error("prompt must list all block types")
	}
}
