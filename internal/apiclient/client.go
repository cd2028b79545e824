// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apiclient is the research agent's client for the record store REST
// API served by internal/server. Every call is one HTTP request; failures
// come back as *APIError carrying the most specific message the server sent.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/httputil"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// DefaultTimeout is the transport timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError describes a failed call. Op is the user-facing description of
// the call, Status is 0 when no response arrived.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is matches ErrNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client talks to the record store REST API rooted at baseURL.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a client for the server at baseURL (for example
// http://localhost:3000). A zero timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// BaseURL returns the server root the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends one request and decodes a 2xx JSON answer into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Message: err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("api request", zap.String("method", method), zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &APIError{Op: op, Status: resp.StatusCode, Message: httputil.ErrorMessage(resp)}
		c.log.Warn("api error", zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("message", e.Message))
		return e
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

func dinosaurPath(id string) string {
	return "/api/dinosaurs/" + url.PathEscape(id)
}

// List returns every record.
func (c *Client) List(ctx context.Context) ([]types.Dinosaur, error) {
	var out []types.Dinosaur
	if err := c.do(ctx, "获取恐龙列表失败", http.MethodGet, "/api/dinosaurs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the record with id, or nil when the server has none.
func (c *Client) Get(ctx context.Context, id string) (*types.Dinosaur, error) {
	var out types.Dinosaur
	err := c.do(ctx, "获取恐龙详情失败", http.MethodGet, dinosaurPath(id), nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns the records whose name, scientific name or description
// contains q, ignoring case.
func (c *Client) Search(ctx context.Context, q string) ([]types.Dinosaur, error) {
	var out []types.Dinosaur
	path := "/api/dinosaurs?" + url.Values{"search": {q}}.Encode()
	if err := c.do(ctx, "搜索恐龙失败", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Exists reports whether a record named name is likely stored. It searches
// server-side, then compares name and scientific name ignoring case. Any
// error is logged and reported as false.
func (c *Client) Exists(ctx context.Context, name string) bool {
	found, err := c.Search(ctx, name)
	if err != nil {
		c.log.Warn("existence check failed", zap.String("name", name), zap.Error(err))
		return false
	}
	for _, d := range found {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.ScientificName, name) {
			return true
		}
	}
	return false
}

// FindExact returns the record whose name equals name byte for byte, or nil.
// It lists every record; no case folding or trimming is applied.
func (c *Client) FindExact(ctx context.Context, name string) (*types.Dinosaur, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("精确查找恐龙失败: %w", err)
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Create stores a new record.
func (c *Client) Create(ctx context.Context, info types.DinosaurInfo) (*types.Dinosaur, error) {
	var out types.Dinosaur
	if err := c.do(ctx, "创建恐龙失败", http.MethodPost, "/api/dinosaurs", info, &out); err != nil {
		return nil, err
	}
	c.log.Info("dinosaur created", zap.String("id", out.ID), zap.String("name", out.Name))
	return &out, nil
}

// Update applies patch to the record with id.
func (c *Client) Update(ctx context.Context, id string, patch types.DinosaurPatch) (*types.Dinosaur, error) {
	var out types.Dinosaur
	if err := c.do(ctx, "更新恐龙失败", http.MethodPut, dinosaurPath(id), patch, &out); err != nil {
		return nil, err
	}
	c.log.Info("dinosaur updated", zap.String("id", id))
	return &out, nil
}

// Delete removes the record with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "删除恐龙失败", http.MethodDelete, dinosaurPath(id), nil, nil)
}

// AddFossils attaches fossils to the record with id.
func (c *Client) AddFossils(ctx context.Context, id string, fossils []types.Fossil) error {
	body := struct {
		Fossils []types.Fossil `json:"fossils"`
	}{fossils}
	return c.do(ctx, "添加化石信息失败", http.MethodPost, dinosaurPath(id)+"/fossils", body, nil)
}

// AddImages attaches images to the record with id.
func (c *Client) AddImages(ctx context.Context, id string, images []types.Image) error {
	body := struct {
		Images []types.Image `json:"images"`
	}{images}
	return c.do(ctx, "添加图片信息失败", http.MethodPost, dinosaurPath(id)+"/images", body, nil)
}

// ListImages returns the images of the record with id.
func (c *Client) ListImages(ctx context.Context, id string) ([]types.Image, error) {
	var out []types.Image
	if err := c.do(ctx, "获取恐龙图片失败", http.MethodGet, dinosaurPath(id)+"/images", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteImage removes the image with imageURL from the record with id.
func (c *Client) DeleteImage(ctx context.Context, id, imageURL string) error {
	body := struct {
		URL string `json:"url"`
	}{imageURL}
	return c.do(ctx, "删除恐龙图片失败", http.MethodDelete, dinosaurPath(id)+"/images", body, nil)
}
