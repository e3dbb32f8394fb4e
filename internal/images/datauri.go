package images

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dataURIPrefix = "data:image/"

// IsImageDataURI reports whether s looks like a base64 data URI carrying an
// image/* payload.
func IsImageDataURI(s string) bool {
	return strings.HasPrefix(s, dataURIPrefix)
}

// ParseDataURI splits an image data URI into its MIME type and decoded bytes.
func ParseDataURI(s string) (string, []byte, error) {
	if !IsImageDataURI(s) {
		return "", nil, fmt.Errorf("not an image data URI")
	}

	rest := strings.TrimPrefix(s, "data:")
	mimeType, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, fmt.Errorf("malformed data URI: missing payload")
	}
	mimeType = strings.TrimSuffix(mimeType, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}

	return mimeType, data, nil
}

// ToDataURI encodes raw image bytes as a base64 data URI.
func ToDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FileToDataURI reads a local image file and encodes it as a data URI. The
// MIME type is inferred from the file extension, falling back to image/jpeg.
func FileToDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	return ToDataURI(mimeType, data), nil
}

// Fetcher downloads remote images and converts them to data URIs.
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a fetcher with a sane default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchToDataURI downloads the image at url and encodes it as a data URI.
func (f *Fetcher) FetchToDataURI(url string) (string, error) {
	resp, err := f.HTTPClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	return ToDataURI(mimeType, data), nil
}
