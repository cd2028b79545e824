// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// PostgresStore keeps records in PostgreSQL through a connection pool.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

// NewPostgresStore connects to connStr and creates the schema if needed.
func NewPostgresStore(ctx context.Context, connStr string, log *zap.Logger) (*PostgresStore, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres store needs a DSN")
	}
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	s := &PostgresStore{db: db, log: log}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dinosaurs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			scientific_name TEXT NOT NULL DEFAULT '',
			period TEXT NOT NULL DEFAULT '',
			diet TEXT NOT NULL DEFAULT '',
			length_min_meters DOUBLE PRECISION,
			length_max_meters DOUBLE PRECISION,
			weight_min_tons DOUBLE PRECISION,
			weight_max_tons DOUBLE PRECISION,
			habitat TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fossils_dinosaur_id ON dinosaur_fossils(dinosaur_id)`,
		`CREATE TABLE IF NOT EXISTS dinosaur_images (
			id TEXT PRIMARY KEY,
			dinosaur_id TEXT NOT NULL REFERENCES dinosaurs(id),
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_dinosaur_id ON dinosaur_images(dinosaur_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func scanPGDinosaur(row rowScanner) (types.Dinosaur, error) {
	var d types.Dinosaur
	err := row.Scan(&d.ID, &d.Name, &d.ScientificName, &d.Period, &d.Diet,
		&d.LengthMinMeters, &d.LengthMaxMeters, &d.WeightMinTons, &d.WeightMaxTons,
		&d.Habitat, &d.Region, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// List returns the records matching f ordered by name, each with its images.
func (s *PostgresStore) List(ctx context.Context, f types.Filter) ([]types.Dinosaur, error) {
	clause, args := where(f, "ILIKE", pgPlaceholder)
	rows, err := s.db.Query(ctx, `SELECT `+dinosaurColumns+` FROM dinosaurs`+clause+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dinosaurs: %w", err)
	}
	defer rows.Close()

	records := []types.Dinosaur{}
	for rows.Next() {
		d, err := scanPGDinosaur(rows)
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

	ids := make([]string, len(records))
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

func (s *PostgresStore) imagesFor(ctx context.Context, ids []string) (map[string][]types.Image, error) {
	rows, err := s.db.Query(ctx,
		`SELECT dinosaur_id, id, url, description, created_at FROM dinosaur_images
		 WHERE dinosaur_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	byID := make(map[string][]types.Image)
	for rows.Next() {
		var dinoID string
		var img types.Image
		if err := rows.Scan(&dinoID, &img.ID, &img.URL, &img.Description, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		byID[dinoID] = append(byID[dinoID], img)
	}
	return byID, rows.Err()
}

// Get returns the record with its fossils and images.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.Dinosaur, error) {
	d, err := scanPGDinosaur(s.db.QueryRow(ctx, `SELECT `+dinosaurColumns+` FROM dinosaurs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dinosaur %s: %w", id, err)
	}

	byID, err := s.imagesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	d.Images = byID[id]
	if d.Images == nil {
		d.Images = []types.Image{}
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, discovery_location, discovery_date, fossil_type, description, image_url, created_at
		 FROM dinosaur_fossils WHERE dinosaur_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying fossils: %w", err)
	}
	defer rows.Close()

	d.Fossils = []types.Fossil{}
	for rows.Next() {
		var f types.Fossil
		if err := rows.Scan(&f.ID, &f.DiscoveryLocation, &f.DiscoveryDate, &f.FossilType,
			&f.Description, &f.ImageURL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fossil: %w", err)
		}
		d.Fossils = append(d.Fossils, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fossils: %w", err)
	}
	return &d, nil
}

// Create inserts a new record and returns it.
func (s *PostgresStore) Create(ctx context.Context, info types.DinosaurInfo) (*types.Dinosaur, error) {
	if err := checkInfo(info); err != nil {
		return nil, err
	}
	ts := now()
	d := types.Dinosaur{ID: uuid.NewString(), DinosaurInfo: info, CreatedAt: ts, UpdatedAt: ts}

	_, err := s.db.Exec(ctx,
		`INSERT INTO dinosaurs (`+dinosaurColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.Name, d.ScientificName, d.Period, d.Diet,
		d.LengthMinMeters, d.LengthMaxMeters, d.WeightMinTons, d.WeightMaxTons,
		d.Habitat, d.Region, d.Description, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("inserting dinosaur: %w", err)
	}
	s.log.Info("created dinosaur", zap.String("id", d.ID), zap.String("name", d.Name))
	return &d, nil
}

// Update applies patch to the record within a transaction.
func (s *PostgresStore) Update(ctx context.Context, id string, patch types.DinosaurPatch) (*types.Dinosaur, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := scanPGDinosaur(tx.QueryRow(ctx,
		`SELECT `+dinosaurColumns+` FROM dinosaurs WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

	_, err = tx.Exec(ctx,
		`UPDATE dinosaurs SET name = $1, scientific_name = $2, period = $3, diet = $4,
			length_min_meters = $5, length_max_meters = $6, weight_min_tons = $7, weight_max_tons = $8,
			habitat = $9, region = $10, description = $11, updated_at = $12
		 WHERE id = $13`,
		d.Name, d.ScientificName, d.Period, d.Diet,
		d.LengthMinMeters, d.LengthMaxMeters, d.WeightMinTons, d.WeightMaxTons,
		d.Habitat, d.Region, d.Description, d.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("updating dinosaur %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	s.log.Info("updated dinosaur", zap.String("id", id), zap.String("name", d.Name))
	return &d, nil
}

// Delete removes the record after its fossils and images.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM dinosaur_fossils WHERE dinosaur_id = $1`, id); err != nil {
		return fmt.Errorf("deleting fossils: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM dinosaur_images WHERE dinosaur_id = $1`, id); err != nil {
		return fmt.Errorf("deleting images: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM dinosaurs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting dinosaur: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) exists(ctx context.Context, q pgx.Tx, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM dinosaurs WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// AddFossils attaches fossils to the record in one batch.
func (s *PostgresStore) AddFossils(ctx context.Context, id string, fossils []types.Fossil) ([]types.Fossil, error) {
	if err := checkFossils(fossils); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.exists(ctx, tx, id); err != nil {
		return nil, err
	}

	ts := now()
	out := make([]types.Fossil, 0, len(fossils))
	batch := &pgx.Batch{}
	for _, f := range fossils {
		f.ID = uuid.NewString()
		f.CreatedAt = &ts
		batch.Queue(`INSERT INTO dinosaur_fossils (id, dinosaur_id, discovery_location, discovery_date, fossil_type, description, image_url, created_at)
		             VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.ID, id, f.DiscoveryLocation, f.DiscoveryDate, f.FossilType, f.Description, f.ImageURL, ts)
		out = append(out, f)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("inserting fossils: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing fossils: %w", err)
	}
	return out, nil
}

// AddImages attaches images to the record in one batch.
func (s *PostgresStore) AddImages(ctx context.Context, id string, images []types.Image) error {
	if err := checkImages(images); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.exists(ctx, tx, id); err != nil {
		return err
	}

	ts := now()
	batch := &pgx.Batch{}
	for _, img := range images {
		batch.Queue(`INSERT INTO dinosaur_images (id, dinosaur_id, url, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), id, img.URL, img.Description, ts)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting images: %w", err)
	}
	return tx.Commit(ctx)
}

// ListImages returns the images of the record.
func (s *PostgresStore) ListImages(ctx context.Context, id string) ([]types.Image, error) {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM dinosaurs WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	byID, err := s.imagesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if byID[id] == nil {
		return []types.Image{}, nil
	}
	return byID[id], nil
}

// DeleteImage removes the images of the record with the given URL.
func (s *PostgresStore) DeleteImage(ctx context.Context, id, url string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM dinosaur_images WHERE dinosaur_id = $1 AND url = $2`, id, url)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}
