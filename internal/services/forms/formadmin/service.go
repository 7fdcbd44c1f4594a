package formadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/pagination"
	"github.com/mw/forms/internal/platform/requestctx"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
	"golang.org/x/text/language"
)

const (
	defaultListFormInstancesPageSize = 10
	maxListFormInstancesPageSize     = 50
)

// Stores groups the collaborators the admin operations depend on.
type Stores struct {
	Forms       storage.FormInstanceStore
	Structures  storage.StructureStore
	Permissions storage.PermissionStore
	Roles       storage.RoleStore
}

// Service exposes the form administration operations.
type Service struct {
	stores Stores
	saver  *Saver
	toggle *PublishToggleHandler
	clock  func() time.Time
}

// NewService creates an admin service over the given stores.
func NewService(stores Stores) *Service {
	saver := NewSaver(stores.Forms, stores.Structures)
	return &Service{
		stores: stores,
		saver:  saver,
		toggle: NewPublishToggleHandler(stores.Forms, stores.Permissions, stores.Roles, saver),
		clock:  time.Now,
	}
}

// TogglePublish flips the published flag of a form instance.
func (s *Service) TogglePublish(ctx context.Context, formInstanceID int64) (PublishResult, error) {
	if s == nil || s.toggle == nil {
		return PublishResult{}, fmt.Errorf("form admin service is not configured")
	}
	return s.toggle.TogglePublish(ctx, formInstanceID)
}

// SaveAndTogglePublish stores edited settings and toggles the published flag
// they carry in a single save.
func (s *Service) SaveAndTogglePublish(ctx context.Context, formInstanceID int64, settings domain.SettingsDocument) (PublishResult, error) {
	if s == nil || s.toggle == nil {
		return PublishResult{}, fmt.Errorf("form admin service is not configured")
	}
	settings, err := normalizeSettings(settings)
	if err != nil {
		return PublishResult{}, err
	}
	return s.toggle.SaveAndTogglePublish(ctx, formInstanceID, settings)
}

// CreateStructureInput describes a new structure.
type CreateStructureInput struct {
	Name   string
	Schema json.RawMessage
	Layout json.RawMessage
}

// CreateStructure stores a structure for the acting company with its first
// version.
func (s *Service) CreateStructure(ctx context.Context, in CreateStructureInput) (domain.StructureVersion, error) {
	if s == nil || s.stores.Structures == nil {
		return domain.StructureVersion{}, fmt.Errorf("structure store is not configured")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.StructureVersion{}, structureInvalidError("name is required")
	}
	if err := validateStructureJSON(in.Schema, in.Layout); err != nil {
		return domain.StructureVersion{}, err
	}
	version, err := s.stores.Structures.CreateStructure(ctx, domain.Structure{
		CompanyID: requestctx.CompanyIDFromContext(ctx),
		Name:      name,
		CreatedAt: s.now(),
	}, in.Schema, in.Layout)
	if err != nil {
		return domain.StructureVersion{}, fmt.Errorf("create structure: %w", err)
	}
	return version, nil
}

// AddStructureVersion appends a version to a structure. Form instances pick
// it up on their next save.
func (s *Service) AddStructureVersion(ctx context.Context, structureID int64, schema, layout json.RawMessage) (domain.StructureVersion, error) {
	if s == nil || s.stores.Structures == nil {
		return domain.StructureVersion{}, fmt.Errorf("structure store is not configured")
	}
	if structureID <= 0 {
		return domain.StructureVersion{}, structureInvalidError("structure id is required")
	}
	if err := validateStructureJSON(schema, layout); err != nil {
		return domain.StructureVersion{}, err
	}
	version, err := s.stores.Structures.AddStructureVersion(ctx, structureID, schema, layout)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.StructureVersion{}, structureNotFoundError(structureID)
		}
		return domain.StructureVersion{}, fmt.Errorf("add structure version: %w", err)
	}
	return version, nil
}

// CreateFormInstanceInput describes a new form instance.
type CreateFormInstanceInput struct {
	StructureID int64
	GroupID     int64
	Name        domain.LocalizedMap
	Description domain.LocalizedMap
	// Settings defaults to an empty en-US document.
	Settings *domain.SettingsDocument
}

// CreateFormInstanceResult is a stored form instance.
type CreateFormInstanceResult struct {
	FormInstance domain.FormInstance
	// Warnings holds best-effort failures that did not stop the create.
	Warnings []error
}

// CreateFormInstance creates a draft form instance bound to the structure's
// latest version. The company's standard roles are ensured and the guest
// role may view the instance and submit records to it. Once the instance is
// stored, a failed guest grant is reported as a warning.
func (s *Service) CreateFormInstance(ctx context.Context, in CreateFormInstanceInput) (CreateFormInstanceResult, error) {
	if s == nil || s.stores.Forms == nil || s.stores.Structures == nil {
		return CreateFormInstanceResult{}, fmt.Errorf("form stores are not configured")
	}
	companyID := requestctx.CompanyIDFromContext(ctx)
	if companyID <= 0 {
		return CreateFormInstanceResult{}, invalidError("company id is required")
	}
	if in.StructureID <= 0 {
		return CreateFormInstanceResult{}, invalidError("structure id is required")
	}
	if strings.TrimSpace(in.Name.Get(language.AmericanEnglish, language.Und)) == "" {
		return CreateFormInstanceResult{}, invalidError("name is required")
	}

	settings := domain.NewSettingsDocument(language.AmericanEnglish)
	if in.Settings != nil {
		normalized, err := normalizeSettings(*in.Settings)
		if err != nil {
			return CreateFormInstanceResult{}, err
		}
		settings = normalized
	}

	latest, err := s.stores.Structures.LatestStructureVersion(ctx, in.StructureID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return CreateFormInstanceResult{}, structureNotFoundError(in.StructureID)
		}
		return CreateFormInstanceResult{}, fmt.Errorf("latest structure version: %w", err)
	}

	instance, err := s.stores.Forms.CreateFormInstance(ctx, storage.CreateFormInstanceInput{
		CompanyID:        companyID,
		GroupID:          in.GroupID,
		UserID:           requestctx.UserIDFromContext(ctx),
		StructureVersion: latest,
		Name:             in.Name.Clone(),
		Description:      in.Description.Clone(),
		Settings:         settings,
		Status:           domain.StatusDraft,
	})
	if err != nil {
		return CreateFormInstanceResult{}, fmt.Errorf("create form instance: %w", err)
	}

	result := CreateFormInstanceResult{FormInstance: instance}
	if err := s.grantGuestAccess(ctx, instance); err != nil {
		warning := permissionWarning(instance.ID, err)
		log.Printf("form instance %d: %v", instance.ID, warning)
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}

func (s *Service) grantGuestAccess(ctx context.Context, instance domain.FormInstance) error {
	if s.stores.Roles == nil || s.stores.Permissions == nil {
		return fmt.Errorf("permission stores are not configured")
	}
	var guest domain.Role
	for _, name := range domain.StandardRoles {
		role, err := s.stores.Roles.EnsureRole(ctx, instance.CompanyID, name)
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", name, err)
		}
		if name == domain.RoleGuest {
			guest = role
		}
	}
	grant := domain.PermissionGrant{PermissionKey: guestKey(instance.CompanyID, instance.ID, guest.ID)}
	grant.AddAction(domain.ActionView)
	grant.AddAction(domain.ActionAddFormInstanceRecord)
	if _, err := s.stores.Permissions.SaveResourcePermission(ctx, grant); err != nil {
		return fmt.Errorf("save guest permission: %w", err)
	}
	return nil
}

// FormInstanceView is a form instance with its decoded settings.
type FormInstanceView struct {
	FormInstance domain.FormInstance
	Settings     domain.Settings
	// SettingsMalformed is set when the settings could not be decoded;
	// Settings is then the zero value.
	SettingsMalformed bool
}

// GetFormInstance returns one form instance.
func (s *Service) GetFormInstance(ctx context.Context, formInstanceID int64) (FormInstanceView, error) {
	if s == nil || s.stores.Forms == nil {
		return FormInstanceView{}, fmt.Errorf("form instance store is not configured")
	}
	instance, err := s.loadFormInstance(ctx, formInstanceID)
	if err != nil {
		return FormInstanceView{}, err
	}
	return newFormInstanceView(instance), nil
}

func newFormInstanceView(instance domain.FormInstance) FormInstanceView {
	view := FormInstanceView{FormInstance: instance}
	settings, err := domain.DecodeSettings(instance.Settings)
	if err != nil {
		view.SettingsMalformed = true
		return view
	}
	view.Settings = settings
	return view
}

// FormInstanceViewPage is one page of form instances.
type FormInstanceViewPage struct {
	FormInstances []FormInstanceView
	NextPageToken string
}

// ListFormInstances returns the acting company's form instances ordered by id.
func (s *Service) ListFormInstances(ctx context.Context, pageSize int, pageToken string) (FormInstanceViewPage, error) {
	if s == nil || s.stores.Forms == nil {
		return FormInstanceViewPage{}, fmt.Errorf("form instance store is not configured")
	}
	if _, err := pagination.DecodeIDToken(pageToken); err != nil {
		return FormInstanceViewPage{}, invalidError(err.Error())
	}
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultListFormInstancesPageSize,
		Max:     maxListFormInstancesPageSize,
	})
	page, err := s.stores.Forms.ListFormInstances(ctx, requestctx.CompanyIDFromContext(ctx), size, pageToken)
	if err != nil {
		return FormInstanceViewPage{}, fmt.Errorf("list form instances: %w", err)
	}
	out := FormInstanceViewPage{
		FormInstances: make([]FormInstanceView, 0, len(page.FormInstances)),
		NextPageToken: page.NextPageToken,
	}
	for _, instance := range page.FormInstances {
		out.FormInstances = append(out.FormInstances, newFormInstanceView(instance))
	}
	return out, nil
}

// UpdateSettings replaces a form instance's settings and re-saves it against
// the newest structure version, keeping its workflow status.
func (s *Service) UpdateSettings(ctx context.Context, formInstanceID int64, settings domain.SettingsDocument) (domain.FormInstance, error) {
	if s == nil || s.stores.Forms == nil || s.saver == nil {
		return domain.FormInstance{}, fmt.Errorf("form stores are not configured")
	}
	settings, err := normalizeSettings(settings)
	if err != nil {
		return domain.FormInstance{}, err
	}
	instance, err := s.loadFormInstance(ctx, formInstanceID)
	if err != nil {
		return domain.FormInstance{}, err
	}
	return s.saver.Save(ctx, SaveFormInstanceRequest{
		FormInstance: instance,
		Settings:     settings,
		Status:       instance.Status,
		UserID:       requestctx.UserIDFromContext(ctx),
	})
}

func (s *Service) loadFormInstance(ctx context.Context, formInstanceID int64) (domain.FormInstance, error) {
	if formInstanceID <= 0 {
		return domain.FormInstance{}, invalidError("form instance id is required")
	}
	return loadOwnedFormInstance(ctx, s.stores.Forms, formInstanceID)
}

// loadOwnedFormInstance reads a form instance visible to the acting company.
// An instance of another company reads as not found; a context without a
// company sees every instance.
func loadOwnedFormInstance(ctx context.Context, forms storage.FormInstanceStore, formInstanceID int64) (domain.FormInstance, error) {
	instance, err := forms.GetFormInstance(ctx, formInstanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.FormInstance{}, notFoundError(formInstanceID)
		}
		return domain.FormInstance{}, fmt.Errorf("load form instance: %w", err)
	}
	if companyID := requestctx.CompanyIDFromContext(ctx); companyID != 0 && companyID != instance.CompanyID {
		return domain.FormInstance{}, notFoundError(formInstanceID)
	}
	return instance, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func guestKey(companyID, formInstanceID, roleID int64) domain.PermissionKey {
	return domain.PermissionKey{
		CompanyID:    companyID,
		ResourceName: domain.FormInstanceResource,
		Scope:        domain.ScopeIndividual,
		PrimaryKey:   strconv.FormatInt(formInstanceID, 10),
		RoleID:       roleID,
	}
}

// normalizeSettings defaults the locale of a caller-supplied settings
// document and rejects one whose typed fields do not decode.
func normalizeSettings(settings domain.SettingsDocument) (domain.SettingsDocument, error) {
	settings = settings.Clone()
	if settings.DefaultLocale == language.Und {
		settings.DefaultLocale = language.AmericanEnglish
	}
	if _, err := domain.DecodeSettings(settings); err != nil {
		return domain.SettingsDocument{}, invalidError(err.Error())
	}
	return settings, nil
}

func validateStructureJSON(schema, layout json.RawMessage) error {
	if len(schema) > 0 && !json.Valid(schema) {
		return structureInvalidError("schema is not valid JSON")
	}
	if len(layout) > 0 && !json.Valid(layout) {
		return structureInvalidError("layout is not valid JSON")
	}
	return nil
}

func structureInvalidError(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeStructureInvalid, reason, map[string]string{"Reason": reason})
}

func structureNotFoundError(structureID int64) error {
	return apperrors.WithMetadata(
		apperrors.CodeStructureNotFound,
		"structure not found",
		map[string]string{"StructureID": strconv.FormatInt(structureID, 10)},
	)
}
