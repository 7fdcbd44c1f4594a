package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mw/forms/internal/platform/pagination"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

const formInstanceColumns = `id, company_id, group_id, user_id, structure_id, structure_version_id, version,
	name_json, description_json, schema_json, layout_json, settings_json, status, created_at, updated_at`

// GetFormInstance returns one form instance by id.
func (s *Store) GetFormInstance(ctx context.Context, id int64) (domain.FormInstance, error) {
	if err := s.ready(ctx); err != nil {
		return domain.FormInstance{}, err
	}
	if id <= 0 {
		return domain.FormInstance{}, fmt.Errorf("form instance id is required")
	}
	return getFormInstance(ctx, s.sqlDB, id)
}

func getFormInstance(ctx context.Context, q queryRower, id int64) (domain.FormInstance, error) {
	row := q.QueryRowContext(ctx, `SELECT `+formInstanceColumns+` FROM form_instances WHERE id = ?`, id)
	instance, err := scanFormInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FormInstance{}, storage.ErrNotFound
		}
		return domain.FormInstance{}, fmt.Errorf("get form instance: %w", err)
	}
	return instance, nil
}

func scanFormInstance(row rowScanner) (domain.FormInstance, error) {
	var (
		instance        domain.FormInstance
		nameJSON        string
		descriptionJSON string
		schemaJSON      string
		layoutJSON      string
		settingsJSON    string
		status          int
		createdAt       int64
		updatedAt       int64
	)
	if err := row.Scan(
		&instance.ID,
		&instance.CompanyID,
		&instance.GroupID,
		&instance.UserID,
		&instance.StructureID,
		&instance.StructureVersionID,
		&instance.Version,
		&nameJSON,
		&descriptionJSON,
		&schemaJSON,
		&layoutJSON,
		&settingsJSON,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.FormInstance{}, err
	}
	instance.Name = decodeLocalized(nameJSON)
	instance.Description = decodeLocalized(descriptionJSON)
	instance.Schema = []byte(schemaJSON)
	instance.Layout = []byte(layoutJSON)
	instance.Settings = decodeSettings(settingsJSON)
	instance.Status = domain.WorkflowStatus(status)
	instance.CreatedAt = fromMillis(createdAt)
	instance.UpdatedAt = fromMillis(updatedAt)
	return instance, nil
}

// GetFormInstanceVersion returns one immutable version snapshot.
func (s *Store) GetFormInstanceVersion(ctx context.Context, id int64, version int) (domain.FormInstanceVersion, error) {
	if err := s.ready(ctx); err != nil {
		return domain.FormInstanceVersion{}, err
	}
	var (
		snapshot        domain.FormInstanceVersion
		nameJSON        string
		descriptionJSON string
		settingsJSON    string
		status          int
		createdAt       int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT form_instance_id, version, structure_version_id, name_json, description_json,
			settings_json, status, user_id, created_at
		FROM form_instance_versions
		WHERE form_instance_id = ? AND version = ?`,
		id, version,
	).Scan(
		&snapshot.FormInstanceID,
		&snapshot.Version,
		&snapshot.StructureVersionID,
		&nameJSON,
		&descriptionJSON,
		&settingsJSON,
		&status,
		&snapshot.UserID,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FormInstanceVersion{}, storage.ErrNotFound
		}
		return domain.FormInstanceVersion{}, fmt.Errorf("get form instance version: %w", err)
	}
	snapshot.Name = decodeLocalized(nameJSON)
	snapshot.Description = decodeLocalized(descriptionJSON)
	snapshot.Settings = decodeSettings(settingsJSON)
	snapshot.Status = domain.WorkflowStatus(status)
	snapshot.CreatedAt = fromMillis(createdAt)
	return snapshot, nil
}

// CreateFormInstance inserts a form instance at version 1 bound to the given
// structure version.
func (s *Store) CreateFormInstance(ctx context.Context, input storage.CreateFormInstanceInput) (domain.FormInstance, error) {
	if err := s.ready(ctx); err != nil {
		return domain.FormInstance{}, err
	}
	if input.StructureVersion.ID <= 0 || input.StructureVersion.StructureID <= 0 {
		return domain.FormInstance{}, fmt.Errorf("structure version is required")
	}
	nameJSON, err := encodeJSON(input.Name)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode name: %w", err)
	}
	descriptionJSON, err := encodeJSON(input.Description)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode description: %w", err)
	}
	settingsJSON, err := encodeJSON(input.Settings)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode settings: %w", err)
	}
	now := toMillis(s.now())

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("begin create form instance: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO form_instances (
			company_id, group_id, user_id, structure_id, structure_version_id, version,
			name_json, description_json, schema_json, layout_json, settings_json, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.CompanyID,
		input.GroupID,
		strings.TrimSpace(input.UserID),
		input.StructureVersion.StructureID,
		input.StructureVersion.ID,
		nameJSON,
		descriptionJSON,
		rawOrEmptyObject(input.StructureVersion.Schema),
		rawOrEmptyObject(input.StructureVersion.Layout),
		settingsJSON,
		int(input.Status),
		now,
		now,
	)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("insert form instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("form instance id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO form_instance_versions (
			form_instance_id, version, structure_version_id, name_json, description_json,
			settings_json, status, user_id, created_at
		) VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		input.StructureVersion.ID,
		nameJSON,
		descriptionJSON,
		settingsJSON,
		int(input.Status),
		strings.TrimSpace(input.UserID),
		now,
	); err != nil {
		return domain.FormInstance{}, fmt.Errorf("insert form instance version: %w", err)
	}
	instance, err := getFormInstance(ctx, tx, id)
	if err != nil {
		return domain.FormInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FormInstance{}, fmt.Errorf("commit create form instance: %w", err)
	}
	return instance, nil
}

// UpdateFormInstance applies one save: it checks the expected version,
// rewrites the row and records a new version snapshot in a single
// transaction. A stale expectation yields storage.ErrVersionConflict.
func (s *Store) UpdateFormInstance(ctx context.Context, input storage.UpdateFormInstanceInput) (domain.FormInstance, error) {
	if err := s.ready(ctx); err != nil {
		return domain.FormInstance{}, err
	}
	if input.FormInstanceID <= 0 {
		return domain.FormInstance{}, fmt.Errorf("form instance id is required")
	}
	if input.StructureVersionID <= 0 {
		return domain.FormInstance{}, fmt.Errorf("structure version id is required")
	}
	nameJSON, err := encodeJSON(input.Name)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode name: %w", err)
	}
	descriptionJSON, err := encodeJSON(input.Description)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode description: %w", err)
	}
	settingsJSON, err := encodeJSON(input.Settings)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("encode settings: %w", err)
	}
	now := toMillis(s.now())
	nextVersion := input.ExpectedVersion + 1

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("begin update form instance: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedVersion int
	err = tx.QueryRowContext(ctx, `SELECT version FROM form_instances WHERE id = ?`, input.FormInstanceID).Scan(&storedVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FormInstance{}, storage.ErrNotFound
		}
		return domain.FormInstance{}, fmt.Errorf("read form instance version: %w", err)
	}
	if storedVersion != input.ExpectedVersion {
		return domain.FormInstance{}, storage.ErrVersionConflict
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE form_instances
		SET structure_version_id = ?,
			version = ?,
			name_json = ?,
			description_json = ?,
			schema_json = ?,
			layout_json = ?,
			settings_json = ?,
			status = ?,
			user_id = ?,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		input.StructureVersionID,
		nextVersion,
		nameJSON,
		descriptionJSON,
		rawOrEmptyObject(input.Schema),
		rawOrEmptyObject(input.Layout),
		settingsJSON,
		int(input.Status),
		strings.TrimSpace(input.UserID),
		now,
		input.FormInstanceID,
		input.ExpectedVersion,
	)
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("update form instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.FormInstance{}, fmt.Errorf("update form instance rows: %w", err)
	}
	if affected != 1 {
		return domain.FormInstance{}, storage.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO form_instance_versions (
			form_instance_id, version, structure_version_id, name_json, description_json,
			settings_json, status, user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.FormInstanceID,
		nextVersion,
		input.StructureVersionID,
		nameJSON,
		descriptionJSON,
		settingsJSON,
		int(input.Status),
		strings.TrimSpace(input.UserID),
		now,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.FormInstance{}, storage.ErrVersionConflict
		}
		return domain.FormInstance{}, fmt.Errorf("insert form instance version: %w", err)
	}

	instance, err := getFormInstance(ctx, tx, input.FormInstanceID)
	if err != nil {
		return domain.FormInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FormInstance{}, fmt.Errorf("commit update form instance: %w", err)
	}
	return instance, nil
}

// ListFormInstances returns one page of a company's form instances ordered
// by id. A zero companyID lists every company.
func (s *Store) ListFormInstances(ctx context.Context, companyID int64, pageSize int, pageToken string) (storage.FormInstancePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FormInstancePage{}, err
	}
	if pageSize <= 0 {
		return storage.FormInstancePage{}, fmt.Errorf("page size must be greater than zero")
	}
	afterID, err := pagination.DecodeIDToken(pageToken)
	if err != nil {
		return storage.FormInstancePage{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+formInstanceColumns+`
		FROM form_instances
		WHERE id > ? AND (? = 0 OR company_id = ?)
		ORDER BY id
		LIMIT ?`,
		afterID, companyID, companyID, pageSize+1,
	)
	if err != nil {
		return storage.FormInstancePage{}, fmt.Errorf("list form instances: %w", err)
	}
	defer rows.Close()

	page := storage.FormInstancePage{FormInstances: make([]domain.FormInstance, 0, pageSize)}
	for rows.Next() {
		instance, err := scanFormInstance(rows)
		if err != nil {
			return storage.FormInstancePage{}, fmt.Errorf("scan form instance: %w", err)
		}
		page.FormInstances = append(page.FormInstances, instance)
	}
	if err := rows.Err(); err != nil {
		return storage.FormInstancePage{}, fmt.Errorf("iterate form instances: %w", err)
	}
	if len(page.FormInstances) > pageSize {
		page.FormInstances = page.FormInstances[:pageSize]
		page.NextPageToken = pagination.EncodeIDToken(page.FormInstances[pageSize-1].ID)
	}
	return page, nil
}
