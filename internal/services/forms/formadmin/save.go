package formadmin

import (
	"context"
	"fmt"
	"strings"

	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

// SaveFormInstanceRequest describes one re-save of an existing form instance.
// FormInstance is the state the caller read; its Version is the expected
// stored version.
type SaveFormInstanceRequest struct {
	FormInstance domain.FormInstance
	Settings     domain.SettingsDocument
	Status       domain.WorkflowStatus
	UserID       string
}

// Saver re-saves form instances against the newest structure version.
type Saver struct {
	forms      storage.FormInstanceStore
	structures storage.StructureStore
}

// NewSaver creates a saver over the form instance and structure stores.
func NewSaver(forms storage.FormInstanceStore, structures storage.StructureStore) *Saver {
	return &Saver{forms: forms, structures: structures}
}

// Save persists the request's settings and status, rebinding the instance to
// its structure's latest version. Store failures surface as persistence errors.
func (s *Saver) Save(ctx context.Context, req SaveFormInstanceRequest) (domain.FormInstance, error) {
	instance := req.FormInstance
	if s == nil || s.forms == nil || s.structures == nil {
		return domain.FormInstance{}, persistFailedError(instance.ID, fmt.Errorf("form stores are not configured"))
	}
	if !req.Status.Valid() {
		return domain.FormInstance{}, invalidError(fmt.Sprintf("workflow status %d is unknown", int(req.Status)))
	}

	latest, err := s.structures.LatestStructureVersion(ctx, instance.StructureID)
	if err != nil {
		return domain.FormInstance{}, persistFailedError(instance.ID, fmt.Errorf("latest structure version: %w", err))
	}

	saved, err := s.forms.UpdateFormInstance(ctx, storage.UpdateFormInstanceInput{
		FormInstanceID:     instance.ID,
		ExpectedVersion:    instance.Version,
		UserID:             strings.TrimSpace(req.UserID),
		Name:               instance.Name,
		Description:        instance.Description,
		StructureVersionID: latest.ID,
		Schema:             latest.Schema,
		Layout:             latest.Layout,
		Settings:           req.Settings,
		Status:             req.Status,
	})
	if err != nil {
		return domain.FormInstance{}, persistenceError(instance.ID, err)
	}
	return saved, nil
}
