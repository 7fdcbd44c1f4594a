// Package formadmin serves the form administration operations as JSON over HTTP.
package formadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/errors/i18n"
	"github.com/mw/forms/internal/services/forms/domain"
	formsvc "github.com/mw/forms/internal/services/forms/formadmin"
)

const maxRequestBodyBytes = 1 << 20

// AdminService is the admin surface the HTTP handler serves.
type AdminService interface {
	CreateStructure(ctx context.Context, in formsvc.CreateStructureInput) (domain.StructureVersion, error)
	AddStructureVersion(ctx context.Context, structureID int64, schema, layout json.RawMessage) (domain.StructureVersion, error)
	CreateFormInstance(ctx context.Context, in formsvc.CreateFormInstanceInput) (formsvc.CreateFormInstanceResult, error)
	GetFormInstance(ctx context.Context, formInstanceID int64) (formsvc.FormInstanceView, error)
	ListFormInstances(ctx context.Context, pageSize int, pageToken string) (formsvc.FormInstanceViewPage, error)
	UpdateSettings(ctx context.Context, formInstanceID int64, settings domain.SettingsDocument) (domain.FormInstance, error)
	TogglePublish(ctx context.Context, formInstanceID int64) (formsvc.PublishResult, error)
	SaveAndTogglePublish(ctx context.Context, formInstanceID int64, settings domain.SettingsDocument) (formsvc.PublishResult, error)
}

type handler struct {
	service AdminService
}

// NewHandler returns the admin API routes. Every /api/ route requires a
// bearer token verified by auth.
func NewHandler(service AdminService, auth *Authenticator) http.Handler {
	h := &handler{service: service}
	api := http.NewServeMux()
	api.HandleFunc("POST /api/structures", h.createStructure)
	api.HandleFunc("POST /api/structures/{id}/versions", h.addStructureVersion)
	api.HandleFunc("POST /api/forms", h.createFormInstance)
	api.HandleFunc("GET /api/forms", h.listFormInstances)
	api.HandleFunc("GET /api/forms/{id}", h.getFormInstance)
	api.HandleFunc("PUT /api/forms/{id}/settings", h.updateSettings)
	api.HandleFunc("POST /api/forms/{id}/publish", h.togglePublish)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/api/", auth.Require(api))
	return mux
}

type structureRequest struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Layout json.RawMessage `json:"layout"`
}

type structureVersionResponse struct {
	StructureID int64           `json:"structureId"`
	VersionID   int64           `json:"versionId"`
	Version     int             `json:"version"`
	Schema      json.RawMessage `json:"schema"`
	Layout      json.RawMessage `json:"layout"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type createFormInstanceRequest struct {
	StructureID int64                    `json:"structureId"`
	GroupID     int64                    `json:"groupId"`
	Name        domain.LocalizedMap      `json:"name"`
	Description domain.LocalizedMap      `json:"description"`
	Settings    *domain.SettingsDocument `json:"settings,omitempty"`
}

type formInstanceResponse struct {
	ID                 int64                   `json:"id"`
	CompanyID          int64                   `json:"companyId"`
	GroupID            int64                   `json:"groupId"`
	StructureID        int64                   `json:"structureId"`
	StructureVersionID int64                   `json:"structureVersionId"`
	Version            int                     `json:"version"`
	Name               domain.LocalizedMap     `json:"name"`
	Description        domain.LocalizedMap     `json:"description"`
	Schema             json.RawMessage         `json:"schema"`
	Layout             json.RawMessage         `json:"layout"`
	Settings           domain.SettingsDocument `json:"settings"`
	Status             domain.WorkflowStatus   `json:"status"`
	Published          bool                    `json:"published"`
	SettingsMalformed  bool                    `json:"settingsMalformed,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
	UpdatedAt          time.Time               `json:"updatedAt"`
}

type createFormInstanceResponse struct {
	formInstanceResponse
	Warnings []string `json:"warnings,omitempty"`
}

type formInstanceListResponse struct {
	FormInstances []formInstanceResponse `json:"formInstances"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

// publishRequest is optional. Settings, when present, are saved together
// with the toggle.
type publishRequest struct {
	Settings *domain.SettingsDocument `json:"settings"`
}

type publishResponse struct {
	FormInstanceID   int64    `json:"formInstanceId"`
	Published        bool     `json:"published"`
	ShowPublishAlert bool     `json:"showPublishAlert"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (h *handler) createStructure(w http.ResponseWriter, r *http.Request) {
	var body structureRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	version, err := h.service.CreateStructure(r.Context(), formsvc.CreateStructureInput{
		Name:   body.Name,
		Schema: body.Schema,
		Layout: body.Layout,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, structureVersionToResponse(version))
}

func (h *handler) addStructureVersion(w http.ResponseWriter, r *http.Request) {
	structureID, err := pathID(r, apperrors.CodeStructureInvalid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body structureRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	version, err := h.service.AddStructureVersion(r.Context(), structureID, body.Schema, body.Layout)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, structureVersionToResponse(version))
}

func (h *handler) createFormInstance(w http.ResponseWriter, r *http.Request) {
	var body createFormInstanceRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.service.CreateFormInstance(r.Context(), formsvc.CreateFormInstanceInput{
		StructureID: body.StructureID,
		GroupID:     body.GroupID,
		Name:        body.Name,
		Description: body.Description,
		Settings:    body.Settings,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := createFormInstanceResponse{formInstanceResponse: formInstanceToResponse(created.FormInstance)}
	resp.Warnings = localizeAll(requestCatalog(r), created.Warnings)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) listFormInstances(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, invalidRequest("page_size must be a number"))
			return
		}
		pageSize = parsed
	}
	page, err := h.service.ListFormInstances(r.Context(), pageSize, query.Get("page_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := formInstanceListResponse{
		FormInstances: make([]formInstanceResponse, 0, len(page.FormInstances)),
		NextPageToken: page.NextPageToken,
	}
	for _, view := range page.FormInstances {
		resp.FormInstances = append(resp.FormInstances, formInstanceViewToResponse(view))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getFormInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, apperrors.CodeFormInstanceInvalid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.service.GetFormInstance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formInstanceViewToResponse(view))
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, apperrors.CodeFormInstanceInvalid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var settings domain.SettingsDocument
	if err := decodeBody(w, r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	instance, err := h.service.UpdateSettings(r.Context(), id, settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formInstanceToResponse(instance))
}

func (h *handler) togglePublish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, apperrors.CodeFormInstanceInvalid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body publishRequest
	if err := decodeOptionalBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	var result formsvc.PublishResult
	if body.Settings != nil {
		result, err = h.service.SaveAndTogglePublish(r.Context(), id, *body.Settings)
	} else {
		result, err = h.service.TogglePublish(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{
		FormInstanceID:   result.FormInstanceID,
		Published:        result.Published,
		ShowPublishAlert: true,
		Warnings:         localizeAll(requestCatalog(r), result.Warnings),
	})
}

func localizeAll(catalog *i18n.Catalog, errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, localize(catalog, err))
	}
	return out
}

func localize(catalog *i18n.Catalog, err error) string {
	code := apperrors.CodeOf(err)
	var metadata map[string]string
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}
	return catalog.Format(string(code), metadata)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return invalidRequest(fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	return nil
}

// decodeOptionalBody is decodeBody for routes where an empty body is valid.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return invalidRequest(fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	return nil
}

func pathID(r *http.Request, code apperrors.Code) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		reason := fmt.Sprintf("id %q is not a positive integer", raw)
		return 0, apperrors.WithMetadata(code, reason, map[string]string{"Reason": reason})
	}
	return id, nil
}

func invalidRequest(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeFormInstanceInvalid, reason, map[string]string{"Reason": reason})
}

func structureVersionToResponse(version domain.StructureVersion) structureVersionResponse {
	return structureVersionResponse{
		StructureID: version.StructureID,
		VersionID:   version.ID,
		Version:     version.Version,
		Schema:      version.Schema,
		Layout:      version.Layout,
		CreatedAt:   version.CreatedAt,
	}
}

func formInstanceToResponse(instance domain.FormInstance) formInstanceResponse {
	published, err := instance.Settings.Published()
	return formInstanceResponse{
		ID:                 instance.ID,
		CompanyID:          instance.CompanyID,
		GroupID:            instance.GroupID,
		StructureID:        instance.StructureID,
		StructureVersionID: instance.StructureVersionID,
		Version:            instance.Version,
		Name:               instance.Name,
		Description:        instance.Description,
		Schema:             instance.Schema,
		Layout:             instance.Layout,
		Settings:           instance.Settings,
		Status:             instance.Status,
		Published:          published,
		SettingsMalformed:  err != nil,
		CreatedAt:          instance.CreatedAt,
		UpdatedAt:          instance.UpdatedAt,
	}
}

func formInstanceViewToResponse(view formsvc.FormInstanceView) formInstanceResponse {
	resp := formInstanceToResponse(view.FormInstance)
	resp.SettingsMalformed = view.SettingsMalformed
	return resp
}
