// Package providers defines the contract shared by the vision model backends.
package providers

import (
	"context"
)

// Request is a single image-and-prompt call to a vision model
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
	MIMEType    string
	// JSON asks backends that support it to constrain the reply to a JSON object
	JSON bool
}

// Provider is a vision-capable LLM backend
type Provider interface {
	Describe(ctx context.Context, req Request) (string, error)
}
