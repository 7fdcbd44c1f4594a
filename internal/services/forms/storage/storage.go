// Package storage defines persistence contracts for the forms service.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mw/forms/internal/services/forms/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates the stored version moved past the caller's expectation.
	ErrVersionConflict = errors.New("version conflict")
)

// CreateFormInstanceInput describes a new form instance at version 1.
type CreateFormInstanceInput struct {
	CompanyID        int64
	GroupID          int64
	UserID           string
	StructureVersion domain.StructureVersion
	Name             domain.LocalizedMap
	Description      domain.LocalizedMap
	Settings         domain.SettingsDocument
	Status           domain.WorkflowStatus
}

// UpdateFormInstanceInput carries everything one save writes. The store
// applies it as a single update and records a new version snapshot.
type UpdateFormInstanceInput struct {
	FormInstanceID     int64
	ExpectedVersion    int
	UserID             string
	Name               domain.LocalizedMap
	Description        domain.LocalizedMap
	StructureVersionID int64
	Schema             json.RawMessage
	Layout             json.RawMessage
	Settings           domain.SettingsDocument
	Status             domain.WorkflowStatus
}

// FormInstancePage stores one page of form instances.
type FormInstancePage struct {
	FormInstances []domain.FormInstance
	NextPageToken string
}

// FormInstanceStore persists form instances and their version history.
type FormInstanceStore interface {
	GetFormInstance(ctx context.Context, id int64) (domain.FormInstance, error)
	GetFormInstanceVersion(ctx context.Context, id int64, version int) (domain.FormInstanceVersion, error)
	CreateFormInstance(ctx context.Context, input CreateFormInstanceInput) (domain.FormInstance, error)
	UpdateFormInstance(ctx context.Context, input UpdateFormInstanceInput) (domain.FormInstance, error)
	ListFormInstances(ctx context.Context, companyID int64, pageSize int, pageToken string) (FormInstancePage, error)
}

// StructureStore persists structures and their versions.
type StructureStore interface {
	CreateStructure(ctx context.Context, structure domain.Structure, schema, layout json.RawMessage) (domain.StructureVersion, error)
	AddStructureVersion(ctx context.Context, structureID int64, schema, layout json.RawMessage) (domain.StructureVersion, error)
	LatestStructureVersion(ctx context.Context, structureID int64) (domain.StructureVersion, error)
}

// PermissionStore persists resource permission grants.
type PermissionStore interface {
	// FetchResourcePermission returns ErrNotFound when no grant row exists.
	FetchResourcePermission(ctx context.Context, key domain.PermissionKey) (domain.PermissionGrant, error)
	SaveResourcePermission(ctx context.Context, grant domain.PermissionGrant) (domain.PermissionGrant, error)
}

// RoleStore resolves company roles.
type RoleStore interface {
	GetRole(ctx context.Context, companyID int64, name string) (domain.Role, error)
	EnsureRole(ctx context.Context, companyID int64, name string) (domain.Role, error)
}
