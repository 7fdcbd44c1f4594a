// Package mcptools exposes form administration as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/errors/i18n"
	"github.com/mw/forms/internal/platform/requestctx"
	formsvc "github.com/mw/forms/internal/services/forms/formadmin"
)

// Service is the admin surface the tools call.
type Service interface {
	TogglePublish(ctx context.Context, formInstanceID int64) (formsvc.PublishResult, error)
	GetFormInstance(ctx context.Context, formInstanceID int64) (formsvc.FormInstanceView, error)
}

// PublishToggleInput is the input of the publish toggle tool.
type PublishToggleInput struct {
	FormInstanceID int64  `json:"form_instance_id" jsonschema:"id of the form instance to toggle"`
	CompanyID      int64  `json:"company_id,omitempty" jsonschema:"company acting on the form; defaults to the form's company"`
	UserID         string `json:"user_id,omitempty" jsonschema:"user recorded on the saved version"`
}

// PublishToggleResult is the output of the publish toggle tool.
type PublishToggleResult struct {
	FormInstanceID   int64    `json:"form_instance_id" jsonschema:"id of the toggled form instance"`
	Published        bool     `json:"published" jsonschema:"published state after the toggle"`
	ShowPublishAlert bool     `json:"show_publish_alert" jsonschema:"whether a UI should confirm the new state"`
	Version          int      `json:"version" jsonschema:"stored version after the save"`
	Status           string   `json:"status" jsonschema:"workflow status after the save"`
	Warnings         []string `json:"warnings,omitempty" jsonschema:"best-effort steps that failed"`
}

// FormInstanceGetInput is the input of the form instance lookup tool.
type FormInstanceGetInput struct {
	FormInstanceID int64 `json:"form_instance_id" jsonschema:"id of the form instance"`
}

// FormInstanceGetResult is the output of the form instance lookup tool.
type FormInstanceGetResult struct {
	ID                 int64             `json:"id" jsonschema:"form instance id"`
	CompanyID          int64             `json:"company_id" jsonschema:"owning company"`
	StructureID        int64             `json:"structure_id" jsonschema:"structure the form is built on"`
	StructureVersionID int64             `json:"structure_version_id" jsonschema:"structure version of the last save"`
	Version            int               `json:"version" jsonschema:"stored version"`
	Name               map[string]string `json:"name" jsonschema:"name by locale"`
	Status             string            `json:"status" jsonschema:"workflow status"`
	Published          bool              `json:"published" jsonschema:"whether end users may submit records"`
	SettingsMalformed  bool              `json:"settings_malformed,omitempty" jsonschema:"settings could not be decoded"`
	Settings           any               `json:"settings" jsonschema:"settings document"`
}

// PublishToggleTool defines the publish toggle tool.
func PublishToggleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "form_publish_toggle",
		Description: "Toggles whether a form instance is published to end users",
	}
}

// FormInstanceGetTool defines the form instance lookup tool.
func FormInstanceGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "form_instance_get",
		Description: "Returns a form instance with its published state",
	}
}

// PublishToggleHandler toggles a form instance on behalf of the given actor.
func PublishToggleHandler(service Service) mcp.ToolHandlerFor[PublishToggleInput, PublishToggleResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PublishToggleInput) (*mcp.CallToolResult, PublishToggleResult, error) {
		ctx = requestctx.WithActor(ctx, input.UserID, input.CompanyID)
		result, err := service.TogglePublish(ctx, input.FormInstanceID)
		if err != nil {
			return nil, PublishToggleResult{}, toolError("toggle publish", err)
		}
		out := PublishToggleResult{
			FormInstanceID:   result.FormInstanceID,
			Published:        result.Published,
			ShowPublishAlert: true,
			Version:          result.FormInstance.Version,
			Status:           result.FormInstance.Status.String(),
		}
		for _, warning := range result.Warnings {
			out.Warnings = append(out.Warnings, warning.Error())
		}
		return nil, out, nil
	}
}

// FormInstanceGetHandler looks up one form instance.
func FormInstanceGetHandler(service Service) mcp.ToolHandlerFor[FormInstanceGetInput, FormInstanceGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FormInstanceGetInput) (*mcp.CallToolResult, FormInstanceGetResult, error) {
		view, err := service.GetFormInstance(ctx, input.FormInstanceID)
		if err != nil {
			return nil, FormInstanceGetResult{}, toolError("get form instance", err)
		}
		instance := view.FormInstance
		raw, err := json.Marshal(instance.Settings)
		if err != nil {
			return nil, FormInstanceGetResult{}, fmt.Errorf("encode settings: %w", err)
		}
		var settings any
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, FormInstanceGetResult{}, fmt.Errorf("decode settings: %w", err)
		}
		name := make(map[string]string, len(instance.Name))
		for tag, value := range instance.Name {
			name[tag.String()] = value
		}
		return nil, FormInstanceGetResult{
			ID:                 instance.ID,
			CompanyID:          instance.CompanyID,
			StructureID:        instance.StructureID,
			StructureVersionID: instance.StructureVersionID,
			Version:            instance.Version,
			Name:               name,
			Status:             instance.Status.String(),
			Published:          view.Settings.Published,
			SettingsMalformed:  view.SettingsMalformed,
			Settings:           settings,
		}, nil
	}
}

// toolError prefixes the error code and the base-locale message so agents
// can branch on the code.
func toolError(action string, err error) error {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		return fmt.Errorf("%s: %w", action, err)
	}
	var metadata map[string]string
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}
	message := i18n.GetCatalog(i18n.BaseLocale.String()).Format(string(code), metadata)
	return fmt.Errorf("%s: %s: %s: %w", action, code, message, err)
}

func registerTools(server *mcp.Server, service Service) {
	mcp.AddTool(server, PublishToggleTool(), PublishToggleHandler(service))
	mcp.AddTool(server, FormInstanceGetTool(), FormInstanceGetHandler(service))
}
