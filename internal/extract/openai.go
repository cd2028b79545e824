// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/httputil"
)

// openAIBaseURL is the default API root. Package-level var for test
// substitution; OpenAIBackend.BaseURL overrides it per backend.
var openAIBaseURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is used when OpenAIBackend.Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint.
// BaseURL lets it target compatible gateways.
type OpenAIBackend struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
	Log     *zap.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the text of
// the first choice.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	model := b.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	base := b.BaseURL
	if base == "" {
		base = openAIBaseURL
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Temperature: Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(base, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.APIKey)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0, b.Log)
	if err != nil {
		return "", fmt.Errorf("calling chat completions API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions API returned %d: %s", resp.StatusCode, httputil.ErrorMessage(resp))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding chat completions response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat completions API returned empty content")
	}
	return cr.Choices[0].Message.Content, nil
}
