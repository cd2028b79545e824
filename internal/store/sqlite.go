// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// DefaultSQLitePath is used when no database path is configured.
const DefaultSQLitePath = "data/dinowiki.db"

// SQLiteStore keeps records in a local SQLite database. Timestamps are
// stored as RFC 3339 text.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteStore opens or creates the database at path and creates the
// schema if it does not exist.
func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dinosaurs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			scientific_name TEXT NOT NULL DEFAULT '',
			period TEXT NOT NULL DEFAULT '',
			diet TEXT NOT NULL DEFAULT '',
			length_min_meters REAL,
			length_max_meters REAL,
			weight_min_tons REAL,
			weight_max_tons REAL,
			habitat TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dinosaurs_name ON dinosaurs(name)`,
		`CREATE TABLE IF NOT EXISTS dinosaur_fossils (
			id TEXT PRIMARY KEY,
			dinosaur_id TEXT NOT NULL REFERENCES dinosaurs(id),
			discovery_location TEXT NOT NULL,
			discovery_date TEXT NOT NULL DEFAULT '',
			fossil_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fossils_dinosaur_id ON dinosaur_fossils(dinosaur_id)`,
		`CREATE TABLE IF NOT EXISTS dinosaur_images (
			id TEXT PRIMARY KEY,
			dinosaur_id TEXT NOT NULL REFERENCES dinosaurs(id),
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_dinosaur_id ON dinosaur_images(dinosaur_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// sqlitePlaceholder numbers parameters so the search pattern can be
// referenced three times while bound once.
func sqlitePlaceholder(n int) string { return "?" + strconv.Itoa(n) }

func formatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func scanSQLiteDinosaur(row rowScanner) (types.Dinosaur, error) {
	var d types.Dinosaur
	var created, updated string
	err := row.Scan(&d.ID, &d.Name, &d.ScientificName, &d.Period, &d.Diet,
		&d.LengthMinMeters, &d.LengthMaxMeters, &d.WeightMinTons, &d.WeightMaxTons,
		&d.Habitat, &d.Region, &d.Description, &created, &updated)
	if err != nil {
		return d, err
	}
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return d, nil
}

// List returns the records matching f ordered by name, each with its images.
// A failure while loading images is logged and the records are returned
// with empty image lists.
func (s *SQLiteStore) List(ctx context.Context, f types.Filter) ([]types.Dinosaur, error) {
	clause, args := where(f, "LIKE", sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, `SELECT `+dinosaurColumns+` FROM dinosaurs`+clause+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dinosaurs: %w", err)
	}
	defer rows.Close()

	records := []types.Dinosaur{}
	for rows.Next() {
		d, err := scanSQLiteDinosaur(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dinosaur: %w", err)
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dinosaurs: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]any, len(records))
	for i, d := range records {
		ids[i] = d.ID
	}
	byID, err := s.imagesFor(ctx, ids)
	if err != nil {
		s.log.Warn("loading images for listing failed", zap.Error(err))
		byID = nil
	}
	attachImages(records, byID)
	return records, nil
}

func (s *SQLiteStore) imagesFor(ctx context.Context, ids []any) (map[string][]types.Image, error) {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT dinosaur_id, id, url, description, created_at FROM dinosaur_images
		 WHERE dinosaur_id IN (`+marks+`) ORDER BY created_at, rowid`, ids...)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	byID := make(map[string][]types.Image)
	for rows.Next() {
		var dinoID, created string
		var img types.Image
		if err := rows.Scan(&dinoID, &img.ID, &img.URL, &img.Description, &created); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		t := parseTime(created)
		img.CreatedAt = &t
		byID[dinoID] = append(byID[dinoID], img)
	}
	return byID, rows.Err()
}

// Get returns the record with its fossils and images.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Dinosaur, error) {
	d, err := scanSQLiteDinosaur(s.db.QueryRowContext(ctx,
		`SELECT `+dinosaurColumns+` FROM dinosaurs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dinosaur %s: %w", id, err)
	}

	byID, err := s.imagesFor(ctx, []any{id})
	if err != nil {
		return nil, err
	}
	d.Images = byID[id]
	if d.Images == nil {
		d.Images = []types.Image{}
	}

	d.Fossils, err = s.fossilsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) fossilsFor(ctx context.Context, id string) ([]types.Fossil, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, discovery_location, discovery_date, fossil_type, description, image_url, created_at
		 FROM dinosaur_fossils WHERE dinosaur_id = ? ORDER BY created_at, rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("querying fossils: %w", err)
	}
	defer rows.Close()

	fossils := []types.Fossil{}
	for rows.Next() {
		var f types.Fossil
		var created string
		if err := rows.Scan(&f.ID, &f.DiscoveryLocation, &f.DiscoveryDate, &f.FossilType,
			&f.Description, &f.ImageURL, &created); err != nil {
			return nil, fmt.Errorf("scanning fossil: %w", err)
		}
		t := parseTime(created)
		f.CreatedAt = &t
		fossils = append(fossils, f)
	}
	return fossils, rows.Err()
}

// Create inserts a new record and returns it.
func (s *SQLiteStore) Create(ctx context.Context, info types.DinosaurInfo) (*types.Dinosaur, error) {
	if err := checkInfo(info); err != nil {
		return nil, err
	}
	ts := now()
	d := types.Dinosaur{ID: uuid.NewString(), DinosaurInfo: info, CreatedAt: ts, UpdatedAt: ts}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dinosaurs (`+dinosaurColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.ScientificName, d.Period, d.Diet,
		d.LengthMinMeters, d.LengthMaxMeters, d.WeightMinTons, d.WeightMaxTons,
		d.Habitat, d.Region, d.Description, formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("inserting dinosaur: %w", err)
	}
	s.log.Info("created dinosaur", zap.String("id", d.ID), zap.String("name", d.Name))
	return &d, nil
}

// Update applies patch to the record and returns the stored result.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch types.DinosaurPatch) (*types.Dinosaur, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := scanSQLiteDinosaur(tx.QueryRowContext(ctx,
		`SELECT `+dinosaurColumns+` FROM dinosaurs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dinosaur %s: %w", id, err)
	}

	patch.Apply(&d.DinosaurInfo)
	if err := checkInfo(d.DinosaurInfo); err != nil {
		return nil, err
	}
	d.UpdatedAt = now()

	_, err = tx.ExecContext(ctx,
		`UPDATE dinosaurs SET name = ?, scientific_name = ?, period = ?, diet = ?,
			length_min_meters = ?, length_max_meters = ?, weight_min_tons = ?, weight_max_tons = ?,
			habitat = ?, region = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		d.Name, d.ScientificName, d.Period, d.Diet,
		d.LengthMinMeters, d.LengthMaxMeters, d.WeightMinTons, d.WeightMaxTons,
		d.Habitat, d.Region, d.Description, formatTime(d.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("updating dinosaur %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	s.log.Info("updated dinosaur", zap.String("id", id), zap.String("name", d.Name))
	return &d, nil
}

// Delete removes the record after its fossils and images.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dinosaur_fossils WHERE dinosaur_id = ?`, id); err != nil {
		return fmt.Errorf("deleting fossils: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dinosaur_images WHERE dinosaur_id = ?`, id); err != nil {
		return fmt.Errorf("deleting images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM dinosaurs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dinosaur: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM dinosaurs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// AddFossils attaches fossils to the record and returns them with IDs.
func (s *SQLiteStore) AddFossils(ctx context.Context, id string, fossils []types.Fossil) ([]types.Fossil, error) {
	if err := checkFossils(fossils); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, id); err != nil {
		return nil, err
	}

	ts := now()
	out := make([]types.Fossil, 0, len(fossils))
	for _, f := range fossils {
		f.ID = uuid.NewString()
		f.CreatedAt = &ts
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dinosaur_fossils (id, dinosaur_id, discovery_location, discovery_date, fossil_type, description, image_url, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, id, f.DiscoveryLocation, f.DiscoveryDate, f.FossilType, f.Description, f.ImageURL, formatTime(ts)); err != nil {
			return nil, fmt.Errorf("inserting fossil: %w", err)
		}
		out = append(out, f)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing fossils: %w", err)
	}
	return out, nil
}

// AddImages attaches images to the record. Duplicate URLs are stored again.
func (s *SQLiteStore) AddImages(ctx context.Context, id string, images []types.Image) error {
	if err := checkImages(images); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, id); err != nil {
		return err
	}

	ts := formatTime(now())
	for _, img := range images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dinosaur_images (id, dinosaur_id, url, description, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), id, img.URL, img.Description, ts); err != nil {
			return fmt.Errorf("inserting image: %w", err)
		}
	}
	return tx.Commit()
}

// ListImages returns the images of the record.
func (s *SQLiteStore) ListImages(ctx context.Context, id string) ([]types.Image, error) {
	if err := s.exists(ctx, s.db, id); err != nil {
		return nil, err
	}
	byID, err := s.imagesFor(ctx, []any{id})
	if err != nil {
		return nil, err
	}
	if byID[id] == nil {
		return []types.Image{}, nil
	}
	return byID[id], nil
}

// DeleteImage removes the images of the record with the given URL.
func (s *SQLiteStore) DeleteImage(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dinosaur_images WHERE dinosaur_id = ? AND url = ?`, id, url)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrImageNotFound
	}
	return nil
}
