package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/productfinder/internal/anthropic"
	"github.com/lehigh-university-libraries/productfinder/internal/gemini"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/lehigh-university-libraries/productfinder/internal/ollama"
	"github.com/lehigh-university-libraries/productfinder/internal/openai"
	"github.com/lehigh-university-libraries/productfinder/internal/providers"
)

// Classifier turns a product photo into ProductMetadata using a vision provider
type Classifier struct {
	provider    providers.Provider
	name        string
	model       string
	temperature float64
}

// NewClassifier builds a classifier for a named provider.
// An empty provider means ollama; an empty model means the provider default.
func NewClassifier(provider, model string) (*Classifier, error) {
	if provider == "" {
		provider = "ollama"
	}

	var p providers.Provider
	var defaultModel string
	switch provider {
	case "ollama":
		p, defaultModel = ollama.New(), ollama.DefaultModel()
	case "openai":
		p, defaultModel = openai.New(), openai.DefaultModel()
	case "gemini":
		p, defaultModel = gemini.New(), gemini.DefaultModel()
	case "anthropic", "claude":
		p, defaultModel = anthropic.New(), anthropic.DefaultModel()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if model == "" {
		model = defaultModel
	}
	return NewClassifierWithProvider(p, provider, model), nil
}

// NewClassifierWithProvider wraps an already constructed provider
func NewClassifierWithProvider(p providers.Provider, name, model string) *Classifier {
	return &Classifier{
		provider: p,
		name:     name,
		model:    model,
		// Low temperature for consistent, factual output
		temperature: 0.1,
	}
}

// Classify sends one image to the provider and parses the first JSON object of the reply
func (c *Classifier) Classify(ctx context.Context, image []byte, mimeType string) (models.ProductMetadata, error) {
	if len(image) == 0 {
		return models.ProductMetadata{}, fmt.Errorf("%w: empty image", models.ErrClassificationFailed)
	}

	text, err := c.provider.Describe(ctx, providers.Request{
		Model:       c.model,
		Temperature: c.temperature,
		Prompt:      buildProductPrompt(),
		Image:       image,
		MIMEType:    mimeType,
		JSON:        true,
	})
	if err != nil {
		return models.ProductMetadata{}, fmt.Errorf("%w: %s: %v", models.ErrClassificationFailed, c.name, err)
	}

	raw, err := ExtractJSONObject(text)
	if err != nil {
		slog.Warn("Provider reply had no JSON object", "provider", c.name, "model", c.model, "length", len(text))
		return models.ProductMetadata{}, fmt.Errorf("%w: %v", models.ErrClassificationFailed, err)
	}

	var meta models.ProductMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return models.ProductMetadata{}, fmt.Errorf("%w: %v", models.ErrClassificationFailed, err)
	}

	slog.Debug("Extracted product metadata", "provider", c.name, "model", c.model, "category", meta.Category, "title", meta.Title)
	return meta, nil
}

// ExtractJSONObject returns the first well-formed JSON object embedded in text,
// ignoring surrounding prose and markdown fences.
func ExtractJSONObject(text string) ([]byte, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		end := i + int(dec.InputOffset())
		return []byte(text[i:end]), nil
	}
	return nil, fmt.Errorf("no JSON object found in response")
}

// MIMETypeFor guesses the image MIME type from a file extension
func MIMETypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

func buildProductPrompt() string {
	return `Analiza esta imagen de producto y extrae la siguiente información en formato JSON:

{
  "categoria": "tipo específico del producto en español (ej: cd, vinilo, libro, dvd, blu-ray, videojuego, celular, notebook, zapatillas, remera, etc.)",
  "titulo": "título del producto",
  "autor": "nombre del autor (si es libro/música)",
  "marca": "nombre de la marca si es visible",
  "descripcion": "descripción breve del producto"
}

Para la categoría, usa el tipo específico que la gente buscaría en MercadoLibre Argentina, no categorías genéricas. Por ejemplo:
- CD (no "música")
- Vinilo (no "música")
- Libro (no "literatura")
- DVD o Blu-ray (no "película")
- Celular o Smartphone (no "electrónica")

Responde SOLAMENTE en español. Si no puedes determinar un campo, usa null.`
}
