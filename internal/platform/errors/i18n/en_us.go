package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                   = "UNKNOWN"
	CodeFormInstanceNotFound      = "FORM_INSTANCE_NOT_FOUND"
	CodeFormInstanceInvalid       = "FORM_INSTANCE_INVALID"
	CodeFormSettingsMalformed     = "FORM_SETTINGS_MALFORMED"
	CodeFormInstancePersistFailed = "FORM_INSTANCE_PERSIST_FAILED"
	CodeFormInstanceConflict      = "FORM_INSTANCE_VERSION_CONFLICT"
	CodePermissionUpdateFailed    = "FORM_PERMISSION_UPDATE_FAILED"
	CodeStructureNotFound         = "STRUCTURE_NOT_FOUND"
	CodeStructureInvalid          = "STRUCTURE_INVALID"
	CodeUnauthenticated           = "UNAUTHENTICATED"
)

var enUSMessages = map[Code]string{
	CodeUnknown:                   "An unexpected error occurred.",
	CodeFormInstanceNotFound:      "Form {{.FormInstanceID}} was not found.",
	CodeFormInstanceInvalid:       "The form request is invalid: {{.Reason}}.",
	CodeFormSettingsMalformed:     "The settings of form {{.FormInstanceID}} are malformed: field {{.Field}} is not a boolean.",
	CodeFormInstancePersistFailed: "Form {{.FormInstanceID}} could not be saved.",
	CodeFormInstanceConflict:      "Form {{.FormInstanceID}} was changed by someone else. Reload and try again.",
	CodePermissionUpdateFailed:    "Guest permissions for form {{.FormInstanceID}} could not be updated.",
	CodeStructureNotFound:         "Structure {{.StructureID}} was not found.",
	CodeStructureInvalid:          "The structure request is invalid: {{.Reason}}.",
	CodeUnauthenticated:           "Sign in to manage forms.",
}

var ptBRMessages = map[Code]string{
	CodeUnknown:                   "Ocorreu um erro inesperado.",
	CodeFormInstanceNotFound:      "O formulário {{.FormInstanceID}} não foi encontrado.",
	CodeFormInstanceInvalid:       "A requisição do formulário é inválida: {{.Reason}}.",
	CodeFormSettingsMalformed:     "As configurações do formulário {{.FormInstanceID}} estão inválidas: o campo {{.Field}} não é booleano.",
	CodeFormInstancePersistFailed: "Não foi possível salvar o formulário {{.FormInstanceID}}.",
	CodeFormInstanceConflict:      "O formulário {{.FormInstanceID}} foi alterado por outra pessoa. Recarregue e tente novamente.",
	CodePermissionUpdateFailed:    "Não foi possível atualizar as permissões de convidado do formulário {{.FormInstanceID}}.",
	CodeStructureNotFound:         "A estrutura {{.StructureID}} não foi encontrada.",
	CodeStructureInvalid:          "A requisição da estrutura é inválida: {{.Reason}}.",
	CodeUnauthenticated:           "Entre para gerenciar formulários.",
}
