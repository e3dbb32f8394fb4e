package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/gemini"
	"github.com/prompt-atelier/promptblocks/internal/images"
	"github.com/prompt-atelier/promptblocks/internal/openai"
	"github.com/prompt-atelier/promptblocks/internal/providers"
)

// MaxPreambleLength bounds the optional mode preamble.
const MaxPreambleLength = 4000

// Request is one single-image decomposition call.
type Request struct {
	Image        string // data URI
	Provider     string // "gpt" or "gemini"
	Model        string
	APIKey       string
	ModePreamble string
}

// Outcome is the parsed result of a decomposition call.
type Outcome struct {
	Prompt string                  `json:"prompt"`
	Result *blocks.DecomposeResult `json:"result"`
}

// Service turns one image into a reconstructed prompt plus its 13 block
// fragments by calling a vision provider and parsing the reply.
type Service struct {
	providers map[string]providers.Provider
}

// NewService creates a decomposition service with the gpt and gemini
// providers registered.
func NewService() *Service {
	return &Service{
		providers: map[string]providers.Provider{
			providers.GPT:    openai.New(),
			providers.Gemini: gemini.New(),
		},
	}
}

// NewServiceWithProviders creates a service with a custom provider registry.
func NewServiceWithProviders(registry map[string]providers.Provider) *Service {
	return &Service{providers: registry}
}

// Decompose analyzes a single image.
func (s *Service) Decompose(ctx context.Context, req Request) (*Outcome, error) {
	provider, ok := s.providers[req.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", req.Provider)
	}

	if len(req.ModePreamble) > MaxPreambleLength {
		return nil, fmt.Errorf("mode preamble exceeds %d characters", MaxPreambleLength)
	}

	model := req.Model
	if model == "" {
		model = defaultModel(req.Provider)
	}

	mimeType, data, err := images.ParseDataURI(req.Image)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %w", err)
	}

	reply, err := provider.Analyze(ctx, providers.Request{
		APIKey:      req.APIKey,
		Model:       model,
		Temperature: 0.2,
		Prompt:      buildDecomposePrompt(req.ModePreamble),
		ImageMIME:   mimeType,
		ImageData:   data,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}

	slog.Info("Image decomposed", "provider", req.Provider, "model", model, "prompt_length", len(outcome.Prompt))
	return outcome, nil
}

func defaultModel(provider string) string {
	switch provider {
	case providers.GPT:
		return "gpt-4o"
	case providers.Gemini:
		return "gemini-2.0-flash"
	default:
		return ""
	}
}

func buildDecomposePrompt(modePreamble string) string {
	var b strings.Builder

	if modePreamble != "" {
		b.WriteString(modePreamble)
		b.WriteString("\n\n")
	}

	b.WriteString(`You are analyzing an AI-generated image to reconstruct the prompt that likely produced it.

Decompose the implied prompt into exactly these 13 semantic blocks:
`)
	for _, t := range blocks.AllTypes {
		b.WriteString("- ")
		b.WriteString(string(t))
		b.WriteString("\n")
	}
	b.WriteString(`
INSTRUCTIONS:
1. Describe each block as a short comma-separated prompt fragment in English.
2. Use an empty string for any block not visually present in the image.
3. Also compose "prompt": the full reconstructed prompt, joining the non-empty fragments.

OUTPUT FORMAT:
Respond with ONLY a JSON object, no commentary:
{"prompt": "...", "blocks": {"subject_type": "...", ..., "quality": "..."}}`)

	return b.String()
}

// ParseReply decodes a model reply into an Outcome. Replies wrapped in
// markdown code fences are unwrapped first. Missing block keys become empty
// strings so the result always carries all 13 keys.
func ParseReply(reply string) (*Outcome, error) {
	cleaned := stripCodeFence(reply)

	var parsed struct {
		Prompt string            `json:"prompt"`
		Blocks map[string]string `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}

	return &Outcome{
		Prompt: strings.TrimSpace(parsed.Prompt),
		Result: blocks.FromMap(parsed.Blocks),
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
