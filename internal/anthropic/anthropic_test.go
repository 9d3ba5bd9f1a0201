package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/productfinder/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "secret")

	var got messagesRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Aquí está: "},{"type":"text","text":"{\"categoria\":\"cd\"}"}]}`))
	}))
	defer ts.Close()

	a := New()
	a.BaseURL = ts.URL

	text, err := a.Describe(context.Background(), providers.Request{
		Model:    "claude-test",
		Prompt:   "describe",
		Image:    []byte{0xff, 0xd8},
		MIMEType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, `Aquí está: {"categoria":"cd"}`, text)

	require.Len(t, got.Messages, 1)
	blocks := got.Messages[0].Content
	require.Len(t, blocks, 2)
	assert.Equal(t, "image", blocks[0].Type)
	assert.Equal(t, "image/png", blocks[0].Source.MediaType)
	assert.Equal(t, "text", blocks[1].Type)
	assert.Equal(t, "claude-test", got.Model)
}

func TestDescribeAPIError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "secret")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer ts.Close()

	a := New()
	a.BaseURL = ts.URL

	_, err := a.Describe(context.Background(), providers.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_error")
}

func TestDescribeMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")

	_, err := New().Describe(context.Background(), providers.Request{Prompt: "x"})
	assert.Error(t, err)
}
