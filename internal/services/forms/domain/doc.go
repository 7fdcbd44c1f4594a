// Package domain defines the form-administration model: form instances and
// their versions, structures, settings documents, guest permission grants,
// roles, workflow statuses, and the publish decision.
//
// Types here carry no persistence or transport concerns; stores and APIs
// translate to and from them.
package domain
