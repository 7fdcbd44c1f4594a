package formadmin

import (
	"errors"
	"strconv"

	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

func idMetadata(formInstanceID int64) map[string]string {
	return map[string]string{"FormInstanceID": strconv.FormatInt(formInstanceID, 10)}
}

func notFoundError(formInstanceID int64) error {
	return apperrors.WithMetadata(
		apperrors.CodeFormInstanceNotFound,
		"form instance not found",
		idMetadata(formInstanceID),
	)
}

func invalidError(reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeFormInstanceInvalid,
		reason,
		map[string]string{"Reason": reason},
	)
}

func malformedSettingsError(formInstanceID int64, cause error) error {
	metadata := idMetadata(formInstanceID)
	var fieldErr *domain.SettingsFieldError
	if errors.As(cause, &fieldErr) {
		metadata["Field"] = fieldErr.Field
	}
	return apperrors.WrapWithMetadata(
		apperrors.CodeFormSettingsMalformed,
		"form settings are malformed",
		metadata,
		cause,
	)
}

// persistenceError classifies a failed save. A lost version check maps to
// CodeFormInstanceConflict.
func persistenceError(formInstanceID int64, cause error) error {
	switch {
	case errors.Is(cause, storage.ErrVersionConflict):
		return apperrors.WrapWithMetadata(
			apperrors.CodeFormInstanceConflict,
			"persist form instance",
			idMetadata(formInstanceID),
			cause,
		)
	case errors.Is(cause, storage.ErrNotFound):
		return apperrors.WrapWithMetadata(
			apperrors.CodeFormInstanceNotFound,
			"persist form instance",
			idMetadata(formInstanceID),
			cause,
		)
	}
	return persistFailedError(formInstanceID, cause)
}

func persistFailedError(formInstanceID int64, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeFormInstancePersistFailed,
		"persist form instance",
		idMetadata(formInstanceID),
		cause,
	)
}

func permissionWarning(formInstanceID int64, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodePermissionUpdateFailed,
		"update guest permission",
		idMetadata(formInstanceID),
		cause,
	)
}

// IsPersistenceError reports whether err is a failed save, including a lost
// version check.
func IsPersistenceError(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeFormInstancePersistFailed, apperrors.CodeFormInstanceConflict:
		return true
	}
	return false
}
