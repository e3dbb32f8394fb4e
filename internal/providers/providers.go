package providers

import (
	"context"
)

// Provider tags accepted on the wire.
const (
	GPT    = "gpt"
	Gemini = "gemini"
)

// Request carries everything a vision model call needs. The API key always
// comes from the request, never from the environment: callers bring their own
// credentials.
type Request struct {
	APIKey      string
	Model       string
	Temperature float64
	Prompt      string
	ImageMIME   string
	ImageData   []byte
}

// Provider defines the interface for a vision-capable LLM provider. Analyze
// returns the raw model text; parsing into blocks happens upstream.
type Provider interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
