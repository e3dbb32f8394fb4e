package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/prompt-atelier/promptblocks/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini vision models.
type Gemini struct{}

// New returns a new Gemini provider.
func New() *Gemini {
	return &Gemini{}
}

// Analyze sends the image and instructions to Gemini and returns the raw
// model reply.
func (g *Gemini) Analyze(ctx context.Context, req providers.Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("missing Gemini API key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(req.APIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))

	// genai wants the bare subtype, e.g. "png" rather than "image/png".
	format := strings.TrimPrefix(req.ImageMIME, "image/")
	if format == "" {
		format = "jpeg"
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(req.Prompt),
		genai.ImageData(format, req.ImageData),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}

	return "", fmt.Errorf("unexpected response format from Gemini")
}
