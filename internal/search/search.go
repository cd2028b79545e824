// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries a web search provider for material about one
// dinosaur and normalizes the hits into SearchResult and Image values.
//
// Every operation carries an error policy. A Fatal operation returns a
// *search.Error when the provider fails; a Degrade operation logs the
// failure and returns an empty list, so callers must read an empty result
// as "no signal" rather than as an error.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Provider runs one query against a search API. TavilyProvider is the
// production implementation; tests supply stubs.
type Provider interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// Op names a search operation for error-policy lookup.
type Op string

const (
	OpBasic  Op = "basic"
	OpImages Op = "images"
	OpAspect Op = "aspect"
	OpVerify Op = "verify"
)

// Policy is what an operation does when the provider fails.
type Policy int

const (
	// Fatal returns a *search.Error.
	Fatal Policy = iota
	// Degrade logs the failure and returns an empty result.
	Degrade
)

func (p Policy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "fatal"
}

// DefaultPolicies is the error policy of each operation unless overridden
// with Client.SetPolicy.
var DefaultPolicies = map[Op]Policy{
	OpBasic:  Fatal,
	OpImages: Degrade,
	OpAspect: Degrade,
	OpVerify: Degrade,
}

// DefaultMaxResults caps results per query when the client is built with 0.
const DefaultMaxResults = 2

// encyclopedicDomains biases the basic search toward reference and
// scientific sources.
var encyclopedicDomains = []string{
	"wikipedia.org",
	"britannica.com",
	"nationalgeographic.com",
	"smithsonianmag.com",
	"livescience.com",
	"sciencedirect.com",
	"nature.com",
	"plos.org",
}

// imageDomains is the allow-list for image searches.
var imageDomains = encyclopedicDomains[:5]

// Error is returned by Fatal operations when the provider call fails.
type Error struct {
	Op    Op
	Query string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("搜索失败: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client builds queries for a subject and applies the per-operation error
// policy. It is safe for concurrent use once constructed.
type Client struct {
	provider   Provider
	maxResults int
	policies   map[Op]Policy
	log        *zap.Logger
}

// New returns a Client over provider. maxResults of 0 means
// DefaultMaxResults. A nil logger discards log output.
func New(provider Provider, maxResults int, log *zap.Logger) *Client {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if log == nil {
		log = zap.NewNop()
	}
	policies := make(map[Op]Policy, len(DefaultPolicies))
	for op, p := range DefaultPolicies {
		policies[op] = p
	}
	return &Client{provider: provider, maxResults: maxResults, policies: policies, log: log}
}

// SetPolicy overrides the error policy of op. Call it before sharing the
// client between goroutines.
func (c *Client) SetPolicy(op Op, p Policy) {
	c.policies[op] = p
}

// PolicyFor reports the error policy of op.
func (c *Client) PolicyFor(op Op) Policy {
	return c.policies[op]
}

// MaxResults reports the per-query result cap.
func (c *Client) MaxResults() int { return c.maxResults }

func (c *Client) baseRequest(query string) Request {
	return Request{
		Query:             query,
		SearchDepth:       "advanced",
		MaxResults:        c.maxResults,
		IncludeAnswer:     true,
		IncludeRawContent: "markdown",
	}
}

// SearchBasic runs the general-information query for name over the
// encyclopedic domain allow-list.
func (c *Client) SearchBasic(ctx context.Context, name string) ([]types.SearchResult, error) {
	req := c.baseRequest(name + " dinosaur paleontology fossil habitat diet period")
	req.IncludeDomains = encyclopedicDomains

	resp, err := c.run(ctx, OpBasic, req)
	if err != nil {
		return nil, err
	}
	return Normalize(resp), nil
}

// SearchImages runs the image query for name and returns the images the
// provider attached to the response.
func (c *Client) SearchImages(ctx context.Context, name string) ([]types.Image, error) {
	req := c.baseRequest(name + " dinosaur scientific image")
	req.IncludeImages = true
	req.IncludeImageDescriptions = true
	req.IncludeDomains = imageDomains

	resp, err := c.run(ctx, OpImages, req)
	if err != nil {
		return nil, err
	}
	return Images(resp), nil
}

// AspectOptions overrides parts of an aspect query. Zero fields keep the
// client defaults.
type AspectOptions struct {
	MaxResults     int
	SearchDepth    string
	Topic          string
	IncludeDomains []string
	ExcludeDomains []string
}

// SearchAspect searches for one facet of name, such as "fossil discovery".
func (c *Client) SearchAspect(ctx context.Context, name, aspect string, opts *AspectOptions) ([]types.SearchResult, error) {
	req := c.baseRequest(name + " dinosaur " + aspect)
	if opts != nil {
		if opts.MaxResults > 0 {
			req.MaxResults = opts.MaxResults
		}
		if opts.SearchDepth != "" {
			req.SearchDepth = opts.SearchDepth
		}
		req.Topic = opts.Topic
		req.IncludeDomains = opts.IncludeDomains
		req.ExcludeDomains = opts.ExcludeDomains
	}

	resp, err := c.run(ctx, OpAspect, req)
	if err != nil {
		return nil, err
	}
	return Normalize(resp), nil
}

// VerifyClaim looks for evidence about a quoted claim concerning name.
func (c *Client) VerifyClaim(ctx context.Context, name, claim string) ([]types.SearchResult, error) {
	req := c.baseRequest(fmt.Sprintf("%s dinosaur %q scientific evidence", name, claim))

	resp, err := c.run(ctx, OpVerify, req)
	if err != nil {
		return nil, err
	}
	return Normalize(resp), nil
}

// Suggestions returns follow-up queries covering the usual facets of a
// dinosaur article.
func Suggestions(name string) []string {
	base := strings.ToLower(name)
	return []string{
		base + " habitat environment",
		base + " diet feeding behavior",
		base + " fossil discoveries",
		base + " geological period",
		base + " size weight dimensions",
		base + " behavior social structure",
		base + " evolution phylogeny",
	}
}

func (c *Client) run(ctx context.Context, op Op, req Request) (*Response, error) {
	c.log.Debug("searching", zap.String("op", string(op)), zap.String("query", req.Query))

	resp, err := c.provider.Search(ctx, req)
	if err == nil {
		return resp, nil
	}

	if c.PolicyFor(op) == Degrade {
		c.log.Warn("search failed, continuing without results",
			zap.String("op", string(op)),
			zap.String("query", req.Query),
			zap.Error(err))
		return &Response{}, nil
	}
	return nil, &Error{Op: op, Query: req.Query, Err: err}
}

// Normalize converts provider hits into SearchResults. Content prefers the
// raw markdown body, then the summary, then the snippet. Hits missing a
// title, url, or content are dropped.
func Normalize(resp *Response) []types.SearchResult {
	if resp == nil {
		return []types.SearchResult{}
	}

	out := make([]types.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		content := firstNonEmpty(r.RawContent, r.Content, r.Snippet)
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.URL) == "" || strings.TrimSpace(content) == "" {
			continue
		}
		score := r.Score
		out = append(out, types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
			Score:   &score,
		})
	}
	return out
}

// Images converts provider images into Image values, dropping entries
// without a URL.
func Images(resp *Response) []types.Image {
	if resp == nil {
		return []types.Image{}
	}
	out := make([]types.Image, 0, len(resp.Images))
	for _, img := range resp.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		out = append(out, types.Image{URL: img.URL, Description: img.Description})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
