package formadmin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/requestctx"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
	"golang.org/x/text/language"
)

func TestCreateFormInstanceGrantsGuestSubmit(t *testing.T) {
	f := newFixture()
	ctx := actorContext()
	version, err := f.service.CreateStructure(ctx, CreateStructureInput{Name: "Intake", Schema: json.RawMessage(`{"fields":[]}`)})
	if err != nil {
		t.Fatalf("create structure: %v", err)
	}

	created, err := f.service.CreateFormInstance(ctx, CreateFormInstanceInput{
		StructureID: version.StructureID,
		Name:        domain.LocalizedMap{language.AmericanEnglish: "Intake"},
	})
	if err != nil {
		t.Fatalf("create form instance: %v", err)
	}
	if len(created.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", created.Warnings)
	}
	instance := created.FormInstance
	if instance.CompanyID != testCompanyID || instance.Status != domain.StatusDraft || instance.Version != 1 {
		t.Fatalf("instance = %+v", instance)
	}
	if instance.StructureVersionID != version.ID {
		t.Fatalf("structure version = %d, want %d", instance.StructureVersionID, version.ID)
	}
	published, err := instance.Settings.Published()
	if err != nil || published {
		t.Fatalf("published = %v, %v; want false, nil", published, err)
	}

	for _, name := range domain.StandardRoles {
		if _, err := f.roles.GetRole(ctx, testCompanyID, name); err != nil {
			t.Fatalf("role %s: %v", name, err)
		}
	}
	guest, _ := f.roles.GetRole(ctx, testCompanyID, domain.RoleGuest)
	grant, err := f.permissions.FetchResourcePermission(ctx, guestKey(testCompanyID, instance.ID, guest.ID))
	if err != nil {
		t.Fatalf("fetch guest grant: %v", err)
	}
	if !grant.HasAction(domain.ActionView) || !grant.HasAction(domain.ActionAddFormInstanceRecord) {
		t.Fatalf("guest actions = %v", grant.Actions)
	}

	result, err := f.service.TogglePublish(ctx, instance.ID)
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if !result.Published {
		t.Fatal("expected published")
	}
	grant, _ = f.permissions.FetchResourcePermission(ctx, guestKey(testCompanyID, instance.ID, guest.ID))
	if grant.HasAction(domain.ActionAddFormInstanceRecord) {
		t.Fatalf("guest actions = %v, want submit revoked after publish", grant.Actions)
	}
}

func TestCreateFormInstanceGrantFailureIsWarning(t *testing.T) {
	f := newFixture()
	ctx := actorContext()
	version, err := f.service.CreateStructure(ctx, CreateStructureInput{Name: "Intake"})
	if err != nil {
		t.Fatalf("create structure: %v", err)
	}
	f.permissions.saveErr = errors.New("disk full")

	created, err := f.service.CreateFormInstance(ctx, CreateFormInstanceInput{
		StructureID: version.StructureID,
		Name:        domain.LocalizedMap{language.AmericanEnglish: "Intake"},
	})
	if err != nil {
		t.Fatalf("create form instance: %v", err)
	}
	if created.FormInstance.ID == 0 {
		t.Fatal("expected the stored instance")
	}
	if _, ok := f.forms.instances[created.FormInstance.ID]; !ok {
		t.Fatalf("instance %d not stored", created.FormInstance.ID)
	}
	if len(created.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", created.Warnings)
	}
	if code := apperrors.CodeOf(created.Warnings[0]); code != apperrors.CodePermissionUpdateFailed {
		t.Fatalf("warning code = %s, want %s", code, apperrors.CodePermissionUpdateFailed)
	}
}

func TestOtherCompanyCannotReachFormInstance(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusDraft)
	ctx := requestctx.WithActor(context.Background(), "admin-9", 9)

	if _, err := f.service.GetFormInstance(ctx, testInstanceID); apperrors.CodeOf(err) != apperrors.CodeFormInstanceNotFound {
		t.Fatalf("get err = %v, want not found", err)
	}
	settings := domain.NewSettingsDocument(language.AmericanEnglish)
	if _, err := f.service.UpdateSettings(ctx, testInstanceID, settings); apperrors.CodeOf(err) != apperrors.CodeFormInstanceNotFound {
		t.Fatalf("update err = %v, want not found", err)
	}
	if len(f.forms.updates) != 0 {
		t.Fatalf("updates = %d, want 0", len(f.forms.updates))
	}
}

func TestSaveAndTogglePublishWritesEditsOnce(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusPending)
	key := seedGuestGrant(t, f, domain.ActionAddFormInstanceRecord, domain.ActionView)

	settings := f.forms.instances[testInstanceID].Settings.Clone()
	if err := settings.SetString("/"+domain.SettingRedirectURL, "https://example.com/done"); err != nil {
		t.Fatalf("set redirect: %v", err)
	}
	result, err := f.service.SaveAndTogglePublish(actorContext(), testInstanceID, settings)
	if err != nil {
		t.Fatalf("save and toggle: %v", err)
	}
	if !result.Published {
		t.Fatal("expected published")
	}
	if len(f.forms.updates) != 1 {
		t.Fatalf("updates = %d, want one save", len(f.forms.updates))
	}
	stored := f.forms.instances[testInstanceID]
	if got := stored.Settings.Text("/" + domain.SettingRedirectURL); got != "https://example.com/done" {
		t.Fatalf("redirect = %q", got)
	}
	if got := stored.Settings.Text(domain.PublishedPath); got != "true" {
		t.Fatalf("published = %q, want %q", got, "true")
	}
	if stored.Status != domain.StatusApproved {
		t.Fatalf("status = %v, want %v", stored.Status, domain.StatusApproved)
	}
	if f.permissions.grants[key].HasAction(domain.ActionAddFormInstanceRecord) {
		t.Fatal("expected guest submit revoked")
	}
}

func TestSaveAndTogglePublishReadsEditedFlag(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusPending)

	settings := f.forms.instances[testInstanceID].Settings.Clone()
	if err := settings.SetString(domain.PublishedPath, "true"); err != nil {
		t.Fatalf("set published: %v", err)
	}
	result, err := f.service.SaveAndTogglePublish(actorContext(), testInstanceID, settings)
	if err != nil {
		t.Fatalf("save and toggle: %v", err)
	}
	if result.Published {
		t.Fatal("edited flag was true, toggle should unpublish")
	}
}

func TestSaveAndTogglePublishRejectsMalformedEdits(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusDraft)
	settings := domain.NewSettingsDocument(language.AmericanEnglish)
	if err := settings.SetString("/"+domain.SettingRequireCaptcha, "sometimes"); err != nil {
		t.Fatalf("set captcha: %v", err)
	}

	_, err := f.service.SaveAndTogglePublish(actorContext(), testInstanceID, settings)
	if code := apperrors.CodeOf(err); code != apperrors.CodeFormInstanceInvalid {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeFormInstanceInvalid)
	}
	if len(f.forms.updates) != 0 {
		t.Fatalf("updates = %d, want 0", len(f.forms.updates))
	}
}

func TestCreateFormInstanceValidation(t *testing.T) {
	f := newFixture()
	malformed := domain.NewSettingsDocument(language.AmericanEnglish)
	malformed.FieldValues = append(malformed.FieldValues, domain.FieldValue{
		Name:  domain.SettingPublished,
		Value: map[language.Tag]any{language.AmericanEnglish: "maybe"},
	})

	tests := []struct {
		name string
		ctx  context.Context
		in   CreateFormInstanceInput
		want apperrors.Code
	}{
		{
			name: "missing company",
			ctx:  context.Background(),
			in:   CreateFormInstanceInput{StructureID: 1, Name: domain.LocalizedMap{language.AmericanEnglish: "x"}},
			want: apperrors.CodeFormInstanceInvalid,
		},
		{
			name: "missing name",
			ctx:  actorContext(),
			in:   CreateFormInstanceInput{StructureID: 1},
			want: apperrors.CodeFormInstanceInvalid,
		},
		{
			name: "malformed settings",
			ctx:  actorContext(),
			in:   CreateFormInstanceInput{StructureID: 1, Name: domain.LocalizedMap{language.AmericanEnglish: "x"}, Settings: &malformed},
			want: apperrors.CodeFormInstanceInvalid,
		},
		{
			name: "unknown structure",
			ctx:  actorContext(),
			in:   CreateFormInstanceInput{StructureID: 999, Name: domain.LocalizedMap{language.AmericanEnglish: "x"}},
			want: apperrors.CodeStructureNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateFormInstance(tc.ctx, tc.in)
			if code := apperrors.CodeOf(err); code != tc.want {
				t.Fatalf("code = %s, want %s (err %v)", code, tc.want, err)
			}
		})
	}
}

func TestCreateStructureValidation(t *testing.T) {
	f := newFixture()
	ctx := actorContext()

	if _, err := f.service.CreateStructure(ctx, CreateStructureInput{Name: " "}); apperrors.CodeOf(err) != apperrors.CodeStructureInvalid {
		t.Fatalf("blank name err = %v", err)
	}
	if _, err := f.service.CreateStructure(ctx, CreateStructureInput{Name: "x", Schema: json.RawMessage(`{`)}); apperrors.CodeOf(err) != apperrors.CodeStructureInvalid {
		t.Fatalf("bad schema err = %v", err)
	}
	if _, err := f.service.AddStructureVersion(ctx, 12345, nil, nil); apperrors.CodeOf(err) != apperrors.CodeStructureNotFound {
		t.Fatalf("unknown structure err = %v", err)
	}
}

func TestAddStructureVersionIsPickedUpOnSave(t *testing.T) {
	f := newFixture()
	ctx := actorContext()
	seedScenario(t, f, "true", domain.StatusPending)
	structureID := f.forms.instances[testInstanceID].StructureID

	v4, err := f.service.AddStructureVersion(ctx, structureID, json.RawMessage(`{"v":4}`), nil)
	if err != nil {
		t.Fatalf("add structure version: %v", err)
	}
	if v4.Version != 4 {
		t.Fatalf("version = %d, want 4", v4.Version)
	}

	settings := f.forms.instances[testInstanceID].Settings.Clone()
	if err := settings.SetString("/"+domain.SettingRedirectURL, "https://example.com/thanks"); err != nil {
		t.Fatalf("set redirect: %v", err)
	}
	saved, err := f.service.UpdateSettings(ctx, testInstanceID, settings)
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if saved.StructureVersionID != v4.ID {
		t.Fatalf("structure version = %d, want %d", saved.StructureVersionID, v4.ID)
	}
	if saved.Status != domain.StatusPending {
		t.Fatalf("status = %v, want %v", saved.Status, domain.StatusPending)
	}
	if got := saved.Settings.Text("/" + domain.SettingRedirectURL); got != "https://example.com/thanks" {
		t.Fatalf("redirect = %q", got)
	}
}

func TestUpdateSettingsRejectsMalformedDocument(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusDraft)
	doc := domain.NewSettingsDocument(language.AmericanEnglish)
	doc.FieldValues = append(doc.FieldValues, domain.FieldValue{
		Name:  domain.SettingRequireCaptcha,
		Value: map[language.Tag]any{language.AmericanEnglish: "sometimes"},
	})

	_, err := f.service.UpdateSettings(actorContext(), testInstanceID, doc)
	if code := apperrors.CodeOf(err); code != apperrors.CodeFormInstanceInvalid {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeFormInstanceInvalid)
	}
	if len(f.forms.updates) != 0 {
		t.Fatalf("updates = %d, want 0", len(f.forms.updates))
	}
}

func TestGetFormInstanceView(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "true", domain.StatusApproved)

	view, err := f.service.GetFormInstance(actorContext(), testInstanceID)
	if err != nil {
		t.Fatalf("get form instance: %v", err)
	}
	if !view.Settings.Published || view.SettingsMalformed {
		t.Fatalf("view = %+v, want published", view.Settings)
	}

	if _, err := f.service.GetFormInstance(actorContext(), 404); apperrors.CodeOf(err) != apperrors.CodeFormInstanceNotFound {
		t.Fatalf("missing err = %v", err)
	}
}

func TestGetFormInstanceFlagsMalformedSettings(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "maybe", domain.StatusDraft)

	view, err := f.service.GetFormInstance(actorContext(), testInstanceID)
	if err != nil {
		t.Fatalf("get form instance: %v", err)
	}
	if !view.SettingsMalformed {
		t.Fatal("expected malformed settings flag")
	}
}

func TestListFormInstances(t *testing.T) {
	f := newFixture()
	ctx := actorContext()
	version, err := f.service.CreateStructure(ctx, CreateStructureInput{Name: "Intake"})
	if err != nil {
		t.Fatalf("create structure: %v", err)
	}
	for range 3 {
		if _, err := f.service.CreateFormInstance(ctx, CreateFormInstanceInput{
			StructureID: version.StructureID,
			Name:        domain.LocalizedMap{language.AmericanEnglish: "Form"},
		}); err != nil {
			t.Fatalf("create form instance: %v", err)
		}
	}

	page, err := f.service.ListFormInstances(ctx, 2, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.FormInstances) != 2 || page.NextPageToken == "" {
		t.Fatalf("page = %d items token %q", len(page.FormInstances), page.NextPageToken)
	}
	next, err := f.service.ListFormInstances(ctx, 2, page.NextPageToken)
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.FormInstances) != 1 || next.NextPageToken != "" {
		t.Fatalf("next page = %d items token %q", len(next.FormInstances), next.NextPageToken)
	}

	if _, err := f.service.ListFormInstances(ctx, 2, "!!"); apperrors.CodeOf(err) != apperrors.CodeFormInstanceInvalid {
		t.Fatalf("bad token err = %v", err)
	}
}

func TestSaveRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusDraft)
	instance := f.forms.instances[testInstanceID]

	_, err := f.service.saver.Save(context.Background(), SaveFormInstanceRequest{
		FormInstance: instance,
		Settings:     instance.Settings,
		Status:       domain.WorkflowStatus(99),
	})
	if code := apperrors.CodeOf(err); code != apperrors.CodeFormInstanceInvalid {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeFormInstanceInvalid)
	}
}

func TestSaveMissingStructureIsPersistenceError(t *testing.T) {
	f := newFixture()
	seedScenario(t, f, "false", domain.StatusDraft)
	f.structures.latestErr = storage.ErrNotFound
	instance := f.forms.instances[testInstanceID]

	_, err := f.service.saver.Save(context.Background(), SaveFormInstanceRequest{
		FormInstance: instance,
		Settings:     instance.Settings,
		Status:       instance.Status,
	})
	if !IsPersistenceError(err) {
		t.Fatalf("err = %v, want persistence error", err)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want cause in chain", err)
	}
}
