package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Settings field names.
const (
	SettingPublished             = "published"
	SettingRequireAuthentication = "requireAuthentication"
	SettingRequireCaptcha        = "requireCaptcha"
	SettingRedirectURL           = "redirectURL"
	SettingStorageType           = "storageType"
	SettingWorkflowDefinition    = "workflowDefinition"
	SettingSubmitLabel           = "submitLabel"
)

// PublishedPath addresses the published flag inside a settings document.
const PublishedPath = "/" + SettingPublished

// ErrMalformedSettings marks a settings field holding a value of the wrong type.
var ErrMalformedSettings = errors.New("malformed settings")

// SettingsFieldError reports the field and offending value of a malformed setting.
type SettingsFieldError struct {
	Field string
	Value any
}

func (e *SettingsFieldError) Error() string {
	return fmt.Sprintf("settings field %s: %v is not a boolean", e.Field, e.Value)
}

func (e *SettingsFieldError) Unwrap() error { return ErrMalformedSettings }

// FieldValue is one named settings field. Value maps a locale to a JSON
// scalar; values are string-encoded by convention.
type FieldValue struct {
	Name  string               `json:"name"`
	Value map[language.Tag]any `json:"value,omitempty"`
}

// SettingsDocument is the field-values tree stored with a form instance.
type SettingsDocument struct {
	DefaultLocale    language.Tag   `json:"defaultLocale"`
	AvailableLocales []language.Tag `json:"availableLocales,omitempty"`
	FieldValues      []FieldValue   `json:"fieldValues"`

	// raw is a stored document that did not decode into the typed form. It
	// reads as empty and marshals back unchanged.
	raw json.RawMessage
}

type settingsDocumentJSON SettingsDocument

// NewSettingsDocument returns an empty document for defaultLocale.
func NewSettingsDocument(defaultLocale language.Tag) SettingsDocument {
	return SettingsDocument{
		DefaultLocale:    defaultLocale,
		AvailableLocales: []language.Tag{defaultLocale},
		FieldValues:      []FieldValue{},
	}
}

// ParseSettingsDocument decodes a JSON settings document.
func ParseSettingsDocument(raw []byte) (SettingsDocument, error) {
	var doc SettingsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SettingsDocument{}, fmt.Errorf("parse settings document: %w", err)
	}
	if doc.FieldValues == nil {
		doc.FieldValues = []FieldValue{}
	}
	return doc, nil
}

// UndecodableSettings keeps a stored document that ParseSettingsDocument
// rejected. Reads see an empty en-US document; SetPublished patches the raw
// JSON in place.
func UndecodableSettings(raw []byte) SettingsDocument {
	doc := NewSettingsDocument(language.AmericanEnglish)
	doc.raw = append(json.RawMessage(nil), raw...)
	return doc
}

// Undecodable reports whether d holds a document that did not decode.
func (d SettingsDocument) Undecodable() bool {
	return d.raw != nil
}

// MarshalJSON writes an undecodable document back as it was stored.
func (d SettingsDocument) MarshalJSON() ([]byte, error) {
	if d.raw != nil {
		return append([]byte(nil), d.raw...), nil
	}
	return json.Marshal(settingsDocumentJSON(d))
}

// Clone returns a deep copy.
func (d SettingsDocument) Clone() SettingsDocument {
	out := SettingsDocument{
		DefaultLocale:    d.DefaultLocale,
		AvailableLocales: append([]language.Tag(nil), d.AvailableLocales...),
		FieldValues:      make([]FieldValue, len(d.FieldValues)),
	}
	if d.raw != nil {
		out.raw = append(json.RawMessage(nil), d.raw...)
	}
	for i, fv := range d.FieldValues {
		value := make(map[language.Tag]any, len(fv.Value))
		for k, v := range fv.Value {
			value[k] = v
		}
		out.FieldValues[i] = FieldValue{Name: fv.Name, Value: value}
	}
	return out
}

func fieldName(path string) (string, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (d SettingsDocument) index(path string) int {
	name, ok := fieldName(path)
	if !ok {
		return -1
	}
	for i, fv := range d.FieldValues {
		if fv.Name == name {
			return i
		}
	}
	return -1
}

// Scalar returns the value at path for the default locale. When the default
// locale has no entry it falls back to the undetermined locale and then to
// the first locale in BCP 47 order.
func (d SettingsDocument) Scalar(path string) (any, bool) {
	i := d.index(path)
	if i < 0 {
		return nil, false
	}
	value := d.FieldValues[i].Value
	if v, ok := value[d.DefaultLocale]; ok {
		return v, true
	}
	if v, ok := value[language.Und]; ok {
		return v, true
	}
	first := ""
	var found any
	for tag, v := range value {
		if s := tag.String(); first == "" || s < first {
			first, found = s, v
		}
	}
	return found, first != ""
}

// SetString writes value under the default locale at path, creating the
// field when it does not exist yet.
func (d *SettingsDocument) SetString(path, value string) error {
	name, ok := fieldName(path)
	if !ok {
		return fmt.Errorf("unsupported settings path %q", path)
	}
	if d.raw != nil {
		return fmt.Errorf("%w: document could not be decoded", ErrMalformedSettings)
	}
	d.setField(name, value)
	return nil
}

func (d *SettingsDocument) setField(name, value string) {
	for i := range d.FieldValues {
		if d.FieldValues[i].Name != name {
			continue
		}
		if d.FieldValues[i].Value == nil {
			d.FieldValues[i].Value = map[language.Tag]any{}
		}
		d.FieldValues[i].Value[d.DefaultLocale] = value
		return
	}
	d.FieldValues = append(d.FieldValues, FieldValue{
		Name:  name,
		Value: map[language.Tag]any{d.DefaultLocale: value},
	})
}

// Bool reads the boolean at path. Absent fields read as false. A present
// field must hold a bool, a string accepted by strconv.ParseBool, an empty
// string, or the numbers 0 or 1; anything else is a *SettingsFieldError.
func (d SettingsDocument) Bool(path string) (bool, error) {
	value, ok := d.Scalar(path)
	if !ok {
		return false, nil
	}
	b, err := coerceBool(value)
	if err != nil {
		name, _ := fieldName(path)
		return false, &SettingsFieldError{Field: name, Value: value}
	}
	return b, nil
}

// Text reads the string at path; non-string scalars are formatted.
func (d SettingsDocument) Text(path string) string {
	value, ok := d.Scalar(path)
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Published reads the /published flag.
func (d SettingsDocument) Published() (bool, error) {
	return d.Bool(PublishedPath)
}

// SetPublished writes the /published flag as a string-encoded boolean. On an
// undecodable document only the published field of the raw JSON changes; it
// fails when the raw JSON is not a settings object.
func (d *SettingsDocument) SetPublished(published bool) error {
	value := strconv.FormatBool(published)
	if d.raw == nil {
		d.setField(SettingPublished, value)
		return nil
	}
	patched, err := patchRawField(d.raw, SettingPublished, value)
	if err != nil {
		return err
	}
	d.raw = patched
	return nil
}

// patchRawField sets name to value under the document's default locale,
// leaving every other part of raw as it was.
func patchRawField(raw json.RawMessage, name, value string) (json.RawMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: settings document is not a JSON object", ErrMalformedSettings)
	}

	locale := language.AmericanEnglish.String()
	if s, ok := doc["defaultLocale"].(string); ok && strings.TrimSpace(s) != "" {
		locale = s
	}
	var fields []any
	if existing, ok := doc["fieldValues"]; ok && existing != nil {
		if fields, ok = existing.([]any); !ok {
			return nil, fmt.Errorf("%w: fieldValues is not a list", ErrMalformedSettings)
		}
	}

	patched := false
	for _, field := range fields {
		obj, ok := field.(map[string]any)
		if !ok || obj["name"] != name {
			continue
		}
		values, ok := obj["value"].(map[string]any)
		if !ok {
			values = map[string]any{}
		}
		values[locale] = value
		obj["value"] = values
		patched = true
	}
	if !patched {
		fields = append(fields, map[string]any{"name": name, "value": map[string]any{locale: value}})
	}
	doc["fieldValues"] = fields
	return json.Marshal(doc)
}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, nil
		}
		return strconv.ParseBool(trimmed)
	case float64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case json.Number:
		return coerceBool(v.String())
	}
	return false, ErrMalformedSettings
}

// Settings is the typed view of a settings document.
type Settings struct {
	Published             bool
	RequireAuthentication bool
	RequireCaptcha        bool
	RedirectURL           string
	StorageType           string
	WorkflowDefinition    string
	SubmitLabel           LocalizedMap
}

// DecodeSettings reads the typed settings record out of a document.
func DecodeSettings(d SettingsDocument) (Settings, error) {
	if d.Undecodable() {
		return Settings{}, fmt.Errorf("%w: document could not be decoded", ErrMalformedSettings)
	}
	var (
		s   Settings
		err error
	)
	if s.Published, err = d.Published(); err != nil {
		return Settings{}, err
	}
	if s.RequireAuthentication, err = d.Bool("/" + SettingRequireAuthentication); err != nil {
		return Settings{}, err
	}
	if s.RequireCaptcha, err = d.Bool("/" + SettingRequireCaptcha); err != nil {
		return Settings{}, err
	}
	s.RedirectURL = d.Text("/" + SettingRedirectURL)
	s.StorageType = d.Text("/" + SettingStorageType)
	s.WorkflowDefinition = d.Text("/" + SettingWorkflowDefinition)
	if i := d.index("/" + SettingSubmitLabel); i >= 0 {
		s.SubmitLabel = LocalizedMap{}
		for tag, v := range d.FieldValues[i].Value {
			if str, ok := v.(string); ok {
				s.SubmitLabel[tag] = str
			}
		}
	}
	return s, nil
}
