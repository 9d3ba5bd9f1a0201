package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/productfinder/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	image := []byte("fake-jpeg")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava", body["model"])
		assert.Equal(t, false, body["stream"])
		images, ok := body["images"].([]any)
		require.True(t, ok)
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), images[0])
		assert.Equal(t, "json", body["format"])

		_, _ = w.Write([]byte(`{"response":"{\"title\":\"x\"}"}`))
	}))
	defer ts.Close()

	o := &Ollama{BaseURL: ts.URL, HTTPClient: ts.Client()}
	text, err := o.Describe(context.Background(), providers.Request{Model: "llava", Prompt: "p", Image: image, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, text)
}

func TestDescribeNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer ts.Close()

	o := &Ollama{BaseURL: ts.URL, HTTPClient: ts.Client()}
	_, err := o.Describe(context.Background(), providers.Request{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewReadsHost(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	assert.Equal(t, "http://gpu:11434", New().BaseURL)

	t.Setenv("OLLAMA_HOST", "")
	assert.Equal(t, "http://localhost:11434", New().BaseURL)
}
