package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/models"
)

// User-facing failure messages.
const (
	msgNoComplete    = "배치 분석 결과를 받지 못했습니다. 잠시 후 다시 시도해주세요."
	msgRequestFailed = "배치 처리 요청에 실패했습니다. (%d)"
)

// ImageInput is one image submitted to the batch endpoint.
type ImageInput struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image"`
}

// Options configures a batch run.
type Options struct {
	Token        string // bearer token for auth
	APIKey       string
	Provider     string
	Model        string
	ModePreamble string

	// OnProgress, when set, is invoked after every parsed progress event.
	OnProgress func(*models.ProgressEvent)
}

// Client consumes the batch decomposition NDJSON stream.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a stream client for the given server. No overall request
// timeout is set: batch runs are long-lived and cancellation goes through the
// caller's context.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 0,
		},
	}
}

// Run submits the batch and consumes the stream until the complete event.
// It returns an error if the stream ends without one. Cancelling ctx aborts
// the underlying request; no partial results are salvaged.
func (c *Client) Run(ctx context.Context, imgs []ImageInput, opts Options) (*models.CompleteEvent, error) {
	body, err := json.Marshal(map[string]interface{}{
		"images":       imgs,
		"modePreamble": opts.ModePreamble,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/batch-decompose", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", opts.APIKey)
	req.Header.Set("X-AI-Provider", opts.Provider)
	req.Header.Set("X-AI-Model", opts.Model)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send batch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorResponse(resp)
	}

	return c.consume(ctx, resp.Body, opts.OnProgress)
}

// consume reads the NDJSON stream incrementally: partial reads are buffered,
// complete lines split off on \n, and any trailing non-empty buffer content
// is flushed as a final line once the stream ends. Lines that do not parse or
// carry an unknown type are skipped on purpose; leniency here keeps a noisy
// proxy from killing an otherwise healthy stream.
func (c *Client) consume(ctx context.Context, body io.Reader, onProgress func(*models.ProgressEvent)) (*models.CompleteEvent, error) {
	var complete *models.CompleteEvent
	var buffer strings.Builder
	chunk := make([]byte, 4096)

	handleLine := func(line string) {
		event, ok := parseLine(line)
		if !ok {
			return
		}
		switch ev := event.(type) {
		case *models.ProgressEvent:
			if onProgress != nil {
				onProgress(ev)
			}
		case *models.CompleteEvent:
			complete = ev
		}
	}

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buffer.WriteString(string(chunk[:n]))

			text := buffer.String()
			lines := strings.Split(text, "\n")
			// The last fragment may be an incomplete line; keep it buffered.
			buffer.Reset()
			buffer.WriteString(lines[len(lines)-1])
			for _, line := range lines[:len(lines)-1] {
				handleLine(line)
			}
		}
		if err != nil {
			if err != io.EOF {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("failed to read batch stream: %w", err)
			}
			break
		}
	}

	if trailing := strings.TrimSpace(buffer.String()); trailing != "" {
		handleLine(trailing)
	}

	if complete == nil {
		return nil, fmt.Errorf("%s", msgNoComplete)
	}

	return complete, nil
}

func parseLine(line string) (any, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &envelope); err != nil {
		return nil, false
	}

	switch envelope.Type {
	case models.EventProgress:
		var ev models.ProgressEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, false
		}
		return &ev, true
	case models.EventComplete:
		var ev models.CompleteEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, false
		}
		return &ev, true
	default:
		return nil, false
	}
}

func decodeErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return fmt.Errorf("%s", payload.Error)
	}

	return fmt.Errorf(msgRequestFailed, resp.StatusCode)
}

// WaitForServer polls the healthcheck endpoint until the server responds or
// the deadline passes. Used by the CLI before submitting a batch.
func (c *Client) WaitForServer(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/healthcheck", nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not reachable", c.BaseURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}
