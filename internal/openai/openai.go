package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prompt-atelier/promptblocks/internal/images"
	"github.com/prompt-atelier/promptblocks/internal/providers"
)

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a provider for OpenAI vision models (the "gpt" provider tag).
type OpenAI struct {
	HTTPClient *http.Client
}

// New returns a new OpenAI provider.
func New() *OpenAI {
	return &OpenAI{
		HTTPClient: &http.Client{},
	}
}

// Analyze sends the image and instructions to the chat completions API and
// returns the raw model reply.
func (o *OpenAI) Analyze(ctx context.Context, req providers.Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("missing OpenAI API key")
	}

	dataURI := images.ToDataURI(req.ImageMIME, req.ImageData)

	requestBody, err := json.Marshal(map[string]interface{}{
		"model": req.Model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": req.Prompt,
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": dataURI,
						},
					},
				},
			},
		},
		"max_tokens":  2000,
		"temperature": req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", chatCompletionsURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := o.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
