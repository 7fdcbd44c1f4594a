// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Form instance errors
	CodeFormInstanceNotFound      Code = "FORM_INSTANCE_NOT_FOUND"
	CodeFormInstanceInvalid       Code = "FORM_INSTANCE_INVALID"
	CodeFormSettingsMalformed     Code = "FORM_SETTINGS_MALFORMED"
	CodeFormInstancePersistFailed Code = "FORM_INSTANCE_PERSIST_FAILED"
	CodeFormInstanceConflict      Code = "FORM_INSTANCE_VERSION_CONFLICT"

	// Permission errors
	CodePermissionUpdateFailed Code = "FORM_PERMISSION_UPDATE_FAILED"

	// Structure errors
	CodeStructureNotFound Code = "STRUCTURE_NOT_FOUND"
	CodeStructureInvalid  Code = "STRUCTURE_INVALID"

	// Request errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeFormInstanceInvalid,
		CodeStructureInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - stored state doesn't allow operation
	case CodeFormSettingsMalformed:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeFormInstanceNotFound,
		CodeStructureNotFound:
		return codes.NotFound

	// Aborted - optimistic concurrency lost
	case CodeFormInstanceConflict:
		return codes.Aborted

	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
