// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the fallback catalog locale.
var BaseLocale = language.AmericanEnglish

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	// catalogs holds override and built-in catalogs by canonical locale.
	catalogs = map[string]*Catalog{}

	supported = []language.Tag{language.AmericanEnglish, language.BrazilianPortuguese}
	builtin   = map[language.Tag]map[Code]string{
		language.AmericanEnglish:     enUSMessages,
		language.BrazilianPortuguese: ptBRMessages,
	}
	matcher = language.NewMatcher(supported)
)

// GetCatalog returns the catalog best matching locale, which may be a single
// tag ("pt-BR") or an Accept-Language header value.
// Falls back to en-US if nothing matches.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale.String()
	}

	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolved := Resolve(requested)
	if c, ok := lookupCatalog(resolved.String()); ok {
		return c
	}

	built := NewCatalog(resolved.String(), builtin[resolved])
	return storeCatalogIfAbsent(resolved.String(), built)
}

// Resolve picks the supported locale that best matches an Accept-Language value.
func Resolve(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return supported[index]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so that
// template variables without metadata render consistently.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// built-in one. Intended for init-time and test setup.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
