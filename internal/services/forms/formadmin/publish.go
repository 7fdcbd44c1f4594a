package formadmin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mw/forms/internal/platform/requestctx"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mw/forms/internal/services/forms/formadmin"

// PublishResult is the outcome of one toggle.
type PublishResult struct {
	FormInstanceID int64
	Published      bool
	// FormInstance is the persisted state after the toggle.
	FormInstance domain.FormInstance
	// Warnings holds best-effort failures that did not stop the toggle.
	Warnings []error
}

// PublishToggleHandler flips the published flag of a form instance.
type PublishToggleHandler struct {
	forms       storage.FormInstanceStore
	permissions storage.PermissionStore
	roles       storage.RoleStore
	saver       *Saver
	tracer      trace.Tracer
}

// NewPublishToggleHandler wires the toggle over its collaborators.
func NewPublishToggleHandler(
	forms storage.FormInstanceStore,
	permissions storage.PermissionStore,
	roles storage.RoleStore,
	saver *Saver,
) *PublishToggleHandler {
	return &PublishToggleHandler{
		forms:       forms,
		permissions: permissions,
		roles:       roles,
		saver:       saver,
		tracer:      otel.Tracer(tracerName),
	}
}

// TogglePublish inverts the published flag of a form instance and re-saves
// it against the newest structure version. Publishing approves the instance
// and revokes the guest role's right to submit records; unpublishing keeps
// the latest version's workflow status. The request context supplies the
// acting user and the company the instance must belong to.
func (h *PublishToggleHandler) TogglePublish(ctx context.Context, formInstanceID int64) (PublishResult, error) {
	return h.toggle(ctx, formInstanceID, nil)
}

// SaveAndTogglePublish replaces the instance's settings with settings and
// toggles the published flag they carry, in one save.
func (h *PublishToggleHandler) SaveAndTogglePublish(ctx context.Context, formInstanceID int64, settings domain.SettingsDocument) (PublishResult, error) {
	return h.toggle(ctx, formInstanceID, &settings)
}

func (h *PublishToggleHandler) toggle(ctx context.Context, formInstanceID int64, edited *domain.SettingsDocument) (result PublishResult, err error) {
	if h == nil || h.forms == nil || h.saver == nil {
		return PublishResult{}, fmt.Errorf("publish toggle handler is not configured")
	}
	tracer := h.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "formadmin.TogglePublish",
		trace.WithAttributes(attribute.Int64("form_instance.id", formInstanceID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	if formInstanceID <= 0 {
		return PublishResult{}, invalidError("form instance id is required")
	}

	instance, err := loadOwnedFormInstance(ctx, h.forms, formInstanceID)
	if err != nil {
		return PublishResult{}, err
	}
	if edited != nil {
		instance.Settings = edited.Clone()
	}

	wasPublished, err := instance.Settings.Published()
	if err != nil {
		return PublishResult{}, malformedSettingsError(formInstanceID, err)
	}
	decision := domain.NewPublishDecision(formInstanceID, wasPublished)
	span.SetAttributes(
		attribute.Bool("published.was", decision.WasPublished),
		attribute.Bool("published.will", decision.WillPublish),
	)

	status, err := h.nextStatus(ctx, instance, decision)
	if err != nil {
		return PublishResult{}, err
	}

	var warnings []error
	if err := h.revokeGuestSubmit(ctx, instance, decision); err != nil {
		warning := permissionWarning(formInstanceID, err)
		log.Printf("form instance %d: %v", formInstanceID, warning)
		warnings = append(warnings, warning)
	}

	settings := instance.Settings.Clone()
	if err := settings.SetPublished(decision.WillPublish); err != nil {
		return PublishResult{}, malformedSettingsError(formInstanceID, err)
	}

	saved, err := h.saver.Save(ctx, SaveFormInstanceRequest{
		FormInstance: instance,
		Settings:     settings,
		Status:       status,
		UserID:       requestctx.UserIDFromContext(ctx),
	})
	if err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		FormInstanceID: formInstanceID,
		Published:      decision.WillPublish,
		FormInstance:   saved,
		Warnings:       warnings,
	}, nil
}

// nextStatus resolves the workflow status for the save. It runs before any
// permission change.
func (h *PublishToggleHandler) nextStatus(ctx context.Context, instance domain.FormInstance, decision domain.PublishDecision) (domain.WorkflowStatus, error) {
	if decision.WillPublish {
		return decision.Status(instance.Status), nil
	}
	latest, err := h.forms.GetFormInstanceVersion(ctx, instance.ID, instance.Version)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return decision.Status(instance.Status), nil
		}
		return 0, fmt.Errorf("load latest form instance version: %w", err)
	}
	return decision.Status(latest.Status), nil
}

// revokeGuestSubmit removes ADD_FORM_INSTANCE_RECORD from the guest role's
// individual grant when publishing. The grant belongs to the instance's
// company. A missing role or grant is a no-op.
func (h *PublishToggleHandler) revokeGuestSubmit(ctx context.Context, instance domain.FormInstance, decision domain.PublishDecision) error {
	if !decision.WillPublish {
		return nil
	}
	if h.roles == nil || h.permissions == nil {
		return fmt.Errorf("permission stores are not configured")
	}
	companyID := instance.CompanyID

	guest, err := h.roles.GetRole(ctx, companyID, domain.RoleGuest)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get guest role: %w", err)
	}

	grant, err := h.permissions.FetchResourcePermission(ctx, guestKey(companyID, instance.ID, guest.ID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch guest permission: %w", err)
	}
	if !grant.RemoveAction(domain.ActionAddFormInstanceRecord) {
		return nil
	}
	if _, err := h.permissions.SaveResourcePermission(ctx, grant); err != nil {
		return fmt.Errorf("save guest permission: %w", err)
	}
	return nil
}
