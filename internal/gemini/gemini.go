package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/productfinder/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct{}

// New returns a new Gemini provider
func New() *Gemini {
	return &Gemini{}
}

// DefaultModel returns GEMINI_MODEL or gemini-1.5-flash
func DefaultModel() string {
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		return model
	}
	return "gemini-1.5-flash"
}

// Describe sends the image and prompt to Gemini and joins the text parts of the first candidate
func (g *Gemini) Describe(ctx context.Context, req providers.Request) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := []genai.Part{}
	if len(req.Image) > 0 {
		// genai.ImageData wants the subtype only ("jpeg", "png")
		format := strings.TrimPrefix(req.MIMEType, "image/")
		if format == "" {
			format = "jpeg"
		}
		parts = append(parts, genai.ImageData(format, req.Image))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := model.GenerateContent(ctx, parts...)
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

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}
