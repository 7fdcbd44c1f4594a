package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"golang.org/x/text/language"
)

func settingsWith(t *testing.T, raw string) SettingsDocument {
	t.Helper()
	doc, err := ParseSettingsDocument([]byte(raw))
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	return doc
}

func TestPublishedCoercion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{name: "absent field", raw: `{"defaultLocale":"en-US","fieldValues":[]}`, want: false},
		{name: "string true", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":"true"}}]}`, want: true},
		{name: "string false", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":"false"}}]}`, want: false},
		{name: "json bool", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":true}}]}`, want: true},
		{name: "empty string", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":""}}]}`, want: false},
		{name: "number one", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":1}}]}`, want: true},
		{name: "null value", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":null}}]}`, want: false},
		{name: "other locale only", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"pt-BR":"TRUE"}}]}`, want: true},
		{name: "word", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":"maybe"}}]}`, wantErr: true},
		{name: "number two", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":2}}]}`, wantErr: true},
		{name: "object", raw: `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":{"x":1}}}]}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := settingsWith(t, tc.raw).Published()
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedSettings) {
					t.Fatalf("err = %v, want ErrMalformedSettings", err)
				}
				var fieldErr *SettingsFieldError
				if !errors.As(err, &fieldErr) || fieldErr.Field != SettingPublished {
					t.Fatalf("expected field error for published, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("published: %v", err)
			}
			if got != tc.want {
				t.Fatalf("published = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSetPublishedCreatesAndOverwrites(t *testing.T) {
	doc := NewSettingsDocument(language.AmericanEnglish)
	if err := doc.SetPublished(true); err != nil {
		t.Fatalf("set published: %v", err)
	}

	if got, err := doc.Published(); err != nil || !got {
		t.Fatalf("published = %v, %v; want true", got, err)
	}
	if value, _ := doc.Scalar(PublishedPath); value != "true" {
		t.Fatalf("stored value = %#v, want string \"true\"", value)
	}

	if err := doc.SetPublished(false); err != nil {
		t.Fatalf("set published: %v", err)
	}
	if len(doc.FieldValues) != 1 {
		t.Fatalf("field count = %d, want 1", len(doc.FieldValues))
	}
	if value, _ := doc.Scalar(PublishedPath); value != "false" {
		t.Fatalf("stored value = %#v, want string \"false\"", value)
	}
}

func TestSetStringRejectsNestedPath(t *testing.T) {
	doc := NewSettingsDocument(language.AmericanEnglish)
	if err := doc.SetString("/a/b", "x"); err == nil {
		t.Fatal("expected nested path error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := settingsWith(t, `{"defaultLocale":"en-US","fieldValues":[{"name":"published","value":{"en-US":"false"}}]}`)
	clone := doc.Clone()
	if err := clone.SetPublished(true); err != nil {
		t.Fatalf("set published: %v", err)
	}

	if got, _ := doc.Published(); got {
		t.Fatal("mutating the clone changed the original")
	}
}

func TestSettingsDocumentJSONRoundTripKeepsLocales(t *testing.T) {
	doc := NewSettingsDocument(language.BrazilianPortuguese)
	if err := doc.SetPublished(true); err != nil {
		t.Fatalf("set published: %v", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseSettingsDocument(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.DefaultLocale != language.BrazilianPortuguese {
		t.Fatalf("default locale = %v", back.DefaultLocale)
	}
	if got, _ := back.Published(); !got {
		t.Fatal("published lost in round trip")
	}
}

func TestDecodeSettings(t *testing.T) {
	doc := settingsWith(t, `{
		"defaultLocale": "en-US",
		"fieldValues": [
			{"name": "published", "value": {"en-US": "true"}},
			{"name": "requireCaptcha", "value": {"en-US": "true"}},
			{"name": "redirectURL", "value": {"en-US": "https://example.com/thanks"}},
			{"name": "storageType", "value": {"en-US": "json"}},
			{"name": "submitLabel", "value": {"en-US": "Send", "pt-BR": "Enviar"}}
		]
	}`)

	s, err := DecodeSettings(doc)
	if err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !s.Published || !s.RequireCaptcha || s.RequireAuthentication {
		t.Fatalf("flags = %+v", s)
	}
	if s.RedirectURL != "https://example.com/thanks" || s.StorageType != "json" {
		t.Fatalf("strings = %+v", s)
	}
	if s.SubmitLabel.Get(language.BrazilianPortuguese, language.AmericanEnglish) != "Enviar" {
		t.Fatalf("submit label = %v", s.SubmitLabel)
	}
}

func TestUndecodableSettingsPatchOnlyPublished(t *testing.T) {
	raw := `{"defaultLocale":"pt-BR","fieldValues":[` +
		`{"name":"redirectURL","value":{"pt-BR":"https://keep.me"}},` +
		`{"name":"published","value":{"pt-BR":"false","en-US":"false"}},` +
		`{"name":"submitLabel","value":{"not a tag!!":"Enviar"}}],"extra":12345678901234567890}`
	if _, err := ParseSettingsDocument([]byte(raw)); err == nil {
		t.Fatal("expected parse error for malformed locale key")
	}
	doc := UndecodableSettings([]byte(raw))

	if got, err := doc.Published(); err != nil || got {
		t.Fatalf("published = %v, %v; want false, nil", got, err)
	}
	if _, err := DecodeSettings(doc); !errors.Is(err, ErrMalformedSettings) {
		t.Fatalf("decode err = %v, want ErrMalformedSettings", err)
	}
	if err := doc.SetString("/"+SettingRedirectURL, "x"); !errors.Is(err, ErrMalformedSettings) {
		t.Fatalf("set string err = %v, want ErrMalformedSettings", err)
	}
	if err := doc.SetPublished(true); err != nil {
		t.Fatalf("set published: %v", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var patched struct {
		Extra       json.Number `json:"extra"`
		FieldValues []struct {
			Name  string            `json:"name"`
			Value map[string]string `json:"value"`
		} `json:"fieldValues"`
	}
	if err := json.Unmarshal(out, &patched); err != nil {
		t.Fatalf("unmarshal patched: %v", err)
	}
	if patched.Extra.String() != "12345678901234567890" {
		t.Fatalf("extra = %s, want unchanged", patched.Extra)
	}
	if len(patched.FieldValues) != 3 {
		t.Fatalf("fields = %d, want 3", len(patched.FieldValues))
	}
	values := map[string]map[string]string{}
	for _, fv := range patched.FieldValues {
		values[fv.Name] = fv.Value
	}
	if values[SettingRedirectURL]["pt-BR"] != "https://keep.me" {
		t.Fatalf("redirect = %v", values[SettingRedirectURL])
	}
	if values[SettingPublished]["pt-BR"] != "true" || values[SettingPublished]["en-US"] != "false" {
		t.Fatalf("published = %v, want pt-BR true", values[SettingPublished])
	}
	if values[SettingSubmitLabel]["not a tag!!"] != "Enviar" {
		t.Fatalf("submit label = %v", values[SettingSubmitLabel])
	}

	clone := doc.Clone()
	if !clone.Undecodable() {
		t.Fatal("clone lost the raw document")
	}
}

func TestUndecodableSettingsRejectNonObject(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2]`, `null`, `{"fieldValues":{"a":1}}`} {
		t.Run(raw, func(t *testing.T) {
			doc := UndecodableSettings([]byte(raw))
			if err := doc.SetPublished(true); !errors.Is(err, ErrMalformedSettings) {
				t.Fatalf("err = %v, want ErrMalformedSettings", err)
			}
		})
	}
}
