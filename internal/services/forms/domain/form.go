package domain

import (
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/text/language"
)

// FormInstanceResource is the resource name permission grants use for form instances.
const FormInstanceResource = "forms.FormInstance"

// LocalizedMap holds one translation per locale.
type LocalizedMap map[language.Tag]string

// Get returns the value for tag, falling back to fallback and then to any
// value in stable locale order.
func (m LocalizedMap) Get(tag, fallback language.Tag) string {
	if v, ok := m[tag]; ok {
		return v
	}
	if v, ok := m[fallback]; ok {
		return v
	}
	for _, t := range m.Locales() {
		return m[t]
	}
	return ""
}

// Locales returns the map's locales sorted by BCP 47 string.
func (m LocalizedMap) Locales() []language.Tag {
	tags := make([]language.Tag, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	return tags
}

// Clone returns an independent copy.
func (m LocalizedMap) Clone() LocalizedMap {
	if m == nil {
		return nil
	}
	out := make(LocalizedMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FormInstance is a deployed, schema-bound form.
type FormInstance struct {
	ID                 int64
	CompanyID          int64
	GroupID            int64
	UserID             string
	StructureID        int64
	StructureVersionID int64
	Version            int
	Name               LocalizedMap
	Description        LocalizedMap
	Schema             json.RawMessage
	Layout             json.RawMessage
	Settings           SettingsDocument
	Status             WorkflowStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FormInstanceVersion is the immutable snapshot written by every save.
type FormInstanceVersion struct {
	FormInstanceID     int64
	Version            int
	StructureVersionID int64
	Name               LocalizedMap
	Description        LocalizedMap
	Settings           SettingsDocument
	Status             WorkflowStatus
	UserID             string
	CreatedAt          time.Time
}

// Structure groups the versions of one form schema.
type Structure struct {
	ID        int64
	CompanyID int64
	Name      string
	CreatedAt time.Time
}

// StructureVersion carries the field definitions and layout of one structure revision.
type StructureVersion struct {
	ID          int64
	StructureID int64
	Version     int
	Schema      json.RawMessage
	Layout      json.RawMessage
	CreatedAt   time.Time
}
