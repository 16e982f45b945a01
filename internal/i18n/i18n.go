// Package i18n loads the embedded message catalogs and resolves ids for the
// active language.
package i18n

import (
	"embed"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator is safe for concurrent use. The zero value is not usable; call New.
type Translator struct {
	bundle    *goi18n.Bundle
	languages []string

	mu        sync.RWMutex
	lang      string
	localizer *goi18n.Localizer
}

// New builds the bundle from every embedded active.<lang>.json file and
// selects lang. An empty lang selects the default language.
func New(lang string) *Translator {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{bundle: bundle}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		t.languages = append(t.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}
	slices.Sort(t.languages)

	t.SetLanguage(lang)
	return t
}

// Languages lists the language codes that have a catalog.
func (t *Translator) Languages() []string {
	return slices.Clone(t.languages)
}

// Language returns the active language code.
func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lang
}

// SetLanguage switches the active language. Unknown codes fall back to the
// default language.
func (t *Translator) SetLanguage(lang string) {
	if !slices.Contains(t.languages, lang) {
		lang = config.DefaultLanguage
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lang = lang
	t.localizer = goi18n.NewLocalizer(t.bundle, lang)
}

// Lookup resolves id without template data. ok is false when the id is missing.
func (t *Translator) Lookup(id string) (string, bool) {
	msg, err := t.localize(id, nil)
	if err != nil {
		return "", false
	}
	return msg, true
}

// Msg resolves id, returning id itself when it is missing.
func (t *Translator) Msg(id string) string {
	return t.Format(id, nil)
}

// Format resolves id and executes its template with data.
// The id is returned when it is missing.
func (t *Translator) Format(id string, data map[string]any) string {
	msg, err := t.localize(id, data)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, id,
			config.LogKeyError, err,
		)
		return id
	}
	return msg
}

func (t *Translator) localize(id string, data map[string]any) (string, error) {
	t.mu.RLock()
	l := t.localizer
	t.mu.RUnlock()
	return l.Localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
}
