// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withGeminiServer points new Gemini backends at a test server for the
// duration of the test.
func withGeminiServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	orig := geminiBaseURL
	geminiBaseURL = ts.URL + "/"
	t.Cleanup(func() { geminiBaseURL = orig })
}

func TestGeminiBackend_Complete(t *testing.T) {
	var body map[string]any
	var path, key string
	withGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"name\":\"x\"}"}]}}]}`)
	})

	b, err := NewGeminiBackend(context.Background(), "gm-test", "")
	require.NoError(t, err)
	out, err := b.Complete(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, `{"name":"x"}`, out)
	assert.True(t, strings.HasSuffix(path, "models/"+DefaultGeminiModel+":generateContent"), path)
	assert.Equal(t, "gm-test", key)

	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "request has no generationConfig: %v", body)
	assert.InDelta(t, Temperature, gen["temperature"], 1e-6)
	assert.Equal(t, "application/json", gen["responseMimeType"])

	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	assert.Contains(t, fmt.Sprint(contents[0]), "hello")
}

func TestGeminiBackend_EmptyContent(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"no candidates", `{"candidates":[]}`},
		{"blank text", `{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.answer)
			})

			b, err := NewGeminiBackend(context.Background(), "gm-test", "gemini-test")
			require.NoError(t, err)
			_, err = b.Complete(context.Background(), "hello")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "empty content")
		})
	}
}

func TestGeminiBackend_HTTPError(t *testing.T) {
	withGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	})

	b, err := NewGeminiBackend(context.Background(), "gm-test", "")
	require.NoError(t, err)
	_, err = b.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calling Gemini API")
}

func TestNewGeminiBackend_RequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), "", "")
	require.Error(t, err)
}
