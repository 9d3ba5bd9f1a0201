package openai

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

const defaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a provider for OpenAI chat completions with image input
type OpenAI struct {
	URL        string
	HTTPClient *http.Client
}

// New returns a new OpenAI provider
func New() *OpenAI {
	return &OpenAI{URL: defaultURL, HTTPClient: &http.Client{}}
}

// DefaultModel returns OPENAI_MODEL or gpt-4o
func DefaultModel() string {
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		return model
	}
	return "gpt-4o"
}

// Describe sends the prompt and image as a single user message
func (o *OpenAI) Describe(ctx context.Context, req providers.Request) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	content := []map[string]interface{}{
		{"type": "text", "text": req.Prompt},
	}
	if len(req.Image) > 0 {
		mimeType := req.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		content = append(content, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]string{
				"url": "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}

	body := map[string]interface{}{
		"model": req.Model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
		"max_tokens":  1000,
		"temperature": req.Temperature,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

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
