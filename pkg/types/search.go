// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the dinosaur wiki: the
// persisted record model, the transient values that flow through one research
// run, and the configuration structs loaded by the CLI.
package types

import "time"

// SearchResult is one normalized web search hit. Results with an empty
// title, url, or content never leave the search client.
type SearchResult struct {
	Title   string   `json:"title" yaml:"title"`
	URL     string   `json:"url" yaml:"url"`
	Content string   `json:"content" yaml:"content"`
	Score   *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// Image is a picture attached to a dinosaur record. ID and CreatedAt are
// set by the record store and are empty on images that have not been saved.
type Image struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	URL         string     `json:"url" yaml:"url"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}
