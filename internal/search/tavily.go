// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/httputil"
)

// tavilyAPIURL is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIURL = "https://api.tavily.com/search"

// Request is the body of a Tavily search call.
type Request struct {
	Query                    string   `json:"query"`
	SearchDepth              string   `json:"search_depth,omitempty"`
	Topic                    string   `json:"topic,omitempty"`
	MaxResults               int      `json:"max_results,omitempty"`
	IncludeAnswer            bool     `json:"include_answer,omitempty"`
	IncludeRawContent        string   `json:"include_raw_content,omitempty"`
	IncludeImages            bool     `json:"include_images,omitempty"`
	IncludeImageDescriptions bool     `json:"include_image_descriptions,omitempty"`
	IncludeDomains           []string `json:"include_domains,omitempty"`
	ExcludeDomains           []string `json:"exclude_domains,omitempty"`
}

// Response is the subset of the Tavily response body dinowiki reads.
type Response struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer,omitempty"`
	Results []RawResult `json:"results"`
	Images  []RawImage  `json:"images,omitempty"`
}

// RawResult is one hit as returned by the provider.
type RawResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Score      float64 `json:"score"`
}

// RawImage is one image as returned by the provider. Tavily sends plain URL
// strings when descriptions are off and objects when they are on.
type RawImage struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts either a URL string or a {url, description} object.
func (img *RawImage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		img.URL = s
		img.Description = ""
		return nil
	}
	type plain RawImage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding image entry: %w", err)
	}
	*img = RawImage(p)
	return nil
}

// TavilyProvider calls the Tavily search API.
type TavilyProvider struct {
	APIKey string
	Client *http.Client
	Log    *zap.Logger
}

// Search posts req to Tavily and decodes the response. Rate-limited calls
// are retried by httputil.DoWithRetry; other non-200 statuses are errors
// carrying the provider's message.
func (p *TavilyProvider) Search(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("Tavily API key is not set")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := httputil.DoWithRetry(ctx, p.Client, httpReq, 0, p.Log)
	if err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned HTTP %d: %s", resp.StatusCode, httputil.ErrorMessage(resp))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding Tavily response: %w", err)
	}
	return &out, nil
}
