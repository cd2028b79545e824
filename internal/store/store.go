// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists dinosaur records with their fossils and images.
// SQLiteStore is the default; PostgresStore serves hosted deployments. Both
// satisfy Store and behave the same way: listings are ordered by name and
// carry images, detail reads carry fossils and images, and deleting a record
// removes its fossils and images first.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Store is the record store used by the HTTP server.
type Store interface {
	List(ctx context.Context, f types.Filter) ([]types.Dinosaur, error)
	Get(ctx context.Context, id string) (*types.Dinosaur, error)
	Create(ctx context.Context, info types.DinosaurInfo) (*types.Dinosaur, error)
	Update(ctx context.Context, id string, patch types.DinosaurPatch) (*types.Dinosaur, error)
	Delete(ctx context.Context, id string) error

	AddFossils(ctx context.Context, id string, fossils []types.Fossil) ([]types.Fossil, error)
	AddImages(ctx context.Context, id string, images []types.Image) error
	ListImages(ctx context.Context, id string) ([]types.Image, error)
	DeleteImage(ctx context.Context, id, url string) error

	Ping(ctx context.Context) error
	Close() error
}

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

var (
	// ErrNotFound is returned when a record does not exist. Every not-found
	// error from this package matches it with errors.Is.
	ErrNotFound error = notFoundError("Dinosaur not found")

	// ErrImageNotFound is returned by DeleteImage when no image matched.
	ErrImageNotFound error = notFoundError("Image not found")

	// ErrInvalid marks input the store refuses to write.
	ErrInvalid = errors.New("invalid record")
)

// now is the clock used for timestamps. Package-level var for test substitution.
var now = func() time.Time { return time.Now().UTC() }

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg types.StoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case types.DriverSQLite, "":
		return NewSQLiteStore(cfg.Path, log)
	case types.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func checkInfo(info types.DinosaurInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return nil
}

func checkFossils(fossils []types.Fossil) error {
	for i, f := range fossils {
		if f.DiscoveryLocation == "" || f.FossilType == "" {
			return fmt.Errorf("%w: fossil %d needs discovery_location and fossil_type", ErrInvalid, i)
		}
	}
	return nil
}

func checkImages(images []types.Image) error {
	for i, img := range images {
		if img.URL == "" {
			return fmt.Errorf("%w: image %d has no url", ErrInvalid, i)
		}
	}
	return nil
}

// likePattern escapes s for a LIKE/ILIKE match anywhere in the column.
// Queries using it must declare ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// where builds the filter clause. placeholder returns the parameter marker
// for the n-th argument (1-based). insensitive is the case-insensitive LIKE
// operator of the dialect.
func where(f types.Filter, insensitive string, placeholder func(int) string) (string, []any) {
	var clauses []string
	var args []any
	if f.Search != "" {
		p := placeholder(len(args) + 1)
		clauses = append(clauses, fmt.Sprintf(
			`(name %[1]s %[2]s ESCAPE '\' OR scientific_name %[1]s %[2]s ESCAPE '\' OR description %[1]s %[2]s ESCAPE '\')`,
			insensitive, p))
		args = append(args, likePattern(f.Search))
	}
	if f.Period != "" {
		clauses = append(clauses, "period = "+placeholder(len(args)+1))
		args = append(args, f.Period)
	}
	if f.Diet != "" {
		clauses = append(clauses, "diet = "+placeholder(len(args)+1))
		args = append(args, f.Diet)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// dinosaurColumns is the column order read by scanDinosaur.
const dinosaurColumns = `id, name, scientific_name, period, diet,
	length_min_meters, length_max_meters, weight_min_tons, weight_max_tons,
	habitat, region, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// attachImages distributes images over records by dinosaur ID. Every record
// gets a non-nil slice.
func attachImages(records []types.Dinosaur, byID map[string][]types.Image) {
	for i := range records {
		imgs := byID[records[i].ID]
		if imgs == nil {
			imgs = []types.Image{}
		}
		records[i].Images = imgs
	}
}
