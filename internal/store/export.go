// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Format is an export file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ImportResult counts what Import did.
type ImportResult struct {
	Created int `json:"created" yaml:"created"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Export writes the records matching f, each with its fossils and images,
// to w.
func Export(ctx context.Context, s Store, f types.Filter, w io.Writer, format Format) error {
	listed, err := s.List(ctx, f)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	records := make([]types.Dinosaur, 0, len(listed))
	for _, d := range listed {
		full, err := s.Get(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("reading %s for export: %w", d.ID, err)
		}
		records = append(records, *full)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Import reads records written by Export and creates them with their
// fossils and images. Stored IDs and timestamps are not carried over.
// A record whose name is already stored, byte for byte, is skipped.
func Import(ctx context.Context, s Store, r io.Reader, format Format) (ImportResult, error) {
	var res ImportResult
	var records []types.Dinosaur
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return res, fmt.Errorf("parsing JSON: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.NewDecoder(r).Decode(&records); err != nil && err != io.EOF {
			return res, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return res, fmt.Errorf("unknown import format %q", format)
	}

	existing, err := s.List(ctx, types.Filter{})
	if err != nil {
		return res, fmt.Errorf("listing existing records: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, d := range existing {
		names[d.Name] = true
	}

	for _, d := range records {
		if names[d.Name] {
			res.Skipped++
			continue
		}
		created, err := s.Create(ctx, d.DinosaurInfo)
		if err != nil {
			return res, fmt.Errorf("importing %q: %w", d.Name, err)
		}
		names[d.Name] = true
		res.Created++

		if len(d.Fossils) > 0 {
			fossils := make([]types.Fossil, len(d.Fossils))
			for i, f := range d.Fossils {
				f.ID, f.CreatedAt = "", nil
				fossils[i] = f
			}
			if _, err := s.AddFossils(ctx, created.ID, fossils); err != nil {
				return res, fmt.Errorf("importing fossils of %q: %w", d.Name, err)
			}
		}
		if len(d.Images) > 0 {
			images := make([]types.Image, len(d.Images))
			for i, img := range d.Images {
				img.ID, img.CreatedAt = "", nil
				images[i] = img
			}
			if err := s.AddImages(ctx, created.ID, images); err != nil {
				return res, fmt.Errorf("importing images of %q: %w", d.Name, err)
			}
		}
	}
	return res, nil
}
