package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/productfinder/internal/providers"
)

// Ollama is a provider for a local or remote Ollama server
type Ollama struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a new Ollama provider reading OLLAMA_URL or OLLAMA_HOST
func New() *Ollama {
	baseURL := os.Getenv("OLLAMA_URL")
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{BaseURL: baseURL, HTTPClient: &http.Client{}}
}

// DefaultModel returns OLLAMA_MODEL or the built-in vision model
func DefaultModel() string {
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		return model
	}
	return "mistral-small3.2:24b"
}

// Describe sends the prompt and image to Ollama's generate endpoint
func (o *Ollama) Describe(ctx context.Context, req providers.Request) (string, error) {
	body := map[string]interface{}{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if len(req.Image) > 0 {
		body["images"] = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}
	if req.JSON {
		body["format"] = "json"
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
