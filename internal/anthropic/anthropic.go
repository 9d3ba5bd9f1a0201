// Package anthropic provides a vision provider backed by the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/providers"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultTimeout = 120 * time.Second

	anthropicVersion = "2023-06-01"
)

// Anthropic is a provider for Claude vision models
type Anthropic struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a new Anthropic provider
func New() *Anthropic {
	return &Anthropic{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// DefaultModel returns ANTHROPIC_MODEL or claude-3-5-sonnet-latest
func DefaultModel() string {
	if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
		return model
	}
	return "claude-3-5-sonnet-latest"
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Describe sends the image followed by the prompt and joins the text blocks of the reply
func (a *Anthropic) Describe(ctx context.Context, req providers.Request) (string, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("CLAUDE_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}

	var blocks []contentBlock
	if len(req.Image) > 0 {
		mimeType := req.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: req.Prompt})

	reqBody := messagesRequest{
		Model:       req.Model,
		MaxTokens:   1000,
		Temperature: req.Temperature,
		Messages:    []message{{Role: "user", Content: blocks}},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var msg messagesResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("failed to decode response body (status %d): %w", resp.StatusCode, err)
	}
	if msg.Error != nil {
		return "", fmt.Errorf("anthropic error %s: %s", msg.Error.Type, msg.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content returned from Anthropic")
	}
	return sb.String(), nil
}
