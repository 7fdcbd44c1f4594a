package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

// CreateStructure inserts a structure together with its first version.
func (s *Store) CreateStructure(ctx context.Context, structure domain.Structure, schema, layout json.RawMessage) (domain.StructureVersion, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StructureVersion{}, err
	}
	name := strings.TrimSpace(structure.Name)
	if name == "" {
		return domain.StructureVersion{}, fmt.Errorf("structure name is required")
	}
	createdAt := structure.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("begin create structure: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO structures (company_id, name, created_at) VALUES (?, ?, ?)`,
		structure.CompanyID, name, toMillis(createdAt),
	)
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("insert structure: %w", err)
	}
	structureID, err := result.LastInsertId()
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("structure id: %w", err)
	}
	version, err := insertStructureVersion(ctx, tx, structureID, 1, schema, layout, toMillis(createdAt))
	if err != nil {
		return domain.StructureVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StructureVersion{}, fmt.Errorf("commit create structure: %w", err)
	}
	return version, nil
}

// AddStructureVersion appends the next version to an existing structure.
func (s *Store) AddStructureVersion(ctx context.Context, structureID int64, schema, layout json.RawMessage) (domain.StructureVersion, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StructureVersion{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("begin add structure version: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM structures WHERE id = ?`, structureID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StructureVersion{}, storage.ErrNotFound
		}
		return domain.StructureVersion{}, fmt.Errorf("read structure: %w", err)
	}
	var latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM structure_versions WHERE structure_id = ?`, structureID,
	).Scan(&latest); err != nil {
		return domain.StructureVersion{}, fmt.Errorf("read latest structure version: %w", err)
	}
	version, err := insertStructureVersion(ctx, tx, structureID, latest+1, schema, layout, toMillis(s.now()))
	if err != nil {
		return domain.StructureVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StructureVersion{}, fmt.Errorf("commit add structure version: %w", err)
	}
	return version, nil
}

func insertStructureVersion(ctx context.Context, tx *sql.Tx, structureID int64, version int, schema, layout json.RawMessage, createdAt int64) (domain.StructureVersion, error) {
	schemaJSON := rawOrEmptyObject(schema)
	layoutJSON := rawOrEmptyObject(layout)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO structure_versions (structure_id, version, schema_json, layout_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		structureID, version, schemaJSON, layoutJSON, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.StructureVersion{}, storage.ErrVersionConflict
		}
		return domain.StructureVersion{}, fmt.Errorf("insert structure version: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("structure version id: %w", err)
	}
	return domain.StructureVersion{
		ID:          id,
		StructureID: structureID,
		Version:     version,
		Schema:      json.RawMessage(schemaJSON),
		Layout:      json.RawMessage(layoutJSON),
		CreatedAt:   fromMillis(createdAt),
	}, nil
}

// LatestStructureVersion returns the highest version of a structure.
func (s *Store) LatestStructureVersion(ctx context.Context, structureID int64) (domain.StructureVersion, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StructureVersion{}, err
	}
	var (
		version    domain.StructureVersion
		schemaJSON string
		layoutJSON string
		createdAt  int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, structure_id, version, schema_json, layout_json, created_at
		FROM structure_versions
		WHERE structure_id = ?
		ORDER BY version DESC
		LIMIT 1`,
		structureID,
	).Scan(&version.ID, &version.StructureID, &version.Version, &schemaJSON, &layoutJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StructureVersion{}, storage.ErrNotFound
		}
		return domain.StructureVersion{}, fmt.Errorf("get latest structure version: %w", err)
	}
	version.Schema = json.RawMessage(schemaJSON)
	version.Layout = json.RawMessage(layoutJSON)
	version.CreatedAt = fromMillis(createdAt)
	return version, nil
}
