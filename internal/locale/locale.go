// Package locale translates user-facing strings (badges, export headers, greeting text) for the supported languages.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message IDs for a language. Unknown languages fall back to the default.
type Translator struct {
	bundle    *i18n.Bundle
	fallback  string
	languages []string
}

// New loads the embedded message files. defaultLang is used when a request names no supported language.
func New(defaultLang string) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		code := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if code == "" {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", name, err)
		}
		langs = append(langs, code)
	}
	sort.Strings(langs)

	t := &Translator{bundle: bundle, languages: langs, fallback: "en"}
	if t.Supports(defaultLang) {
		t.fallback = normalize(defaultLang)
	}
	return t, nil
}

// MustNew is New for static setup and tests.
func MustNew(defaultLang string) *Translator {
	t, err := New(defaultLang)
	if err != nil {
		panic(err)
	}
	return t
}

// Languages lists the loaded language codes.
func (t *Translator) Languages() []string {
	out := make([]string, len(t.languages))
	copy(out, t.languages)
	return out
}

// Default returns the fallback language code.
func (t *Translator) Default() string {
	return t.fallback
}

// Supports reports whether lang has a loaded message file.
func (t *Translator) Supports(lang string) bool {
	lang = normalize(lang)
	for _, l := range t.languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Resolve picks the language to use from an explicit choice and an Accept-Language header.
func (t *Translator) Resolve(explicit, acceptLanguage string) string {
	if t.Supports(explicit) {
		return normalize(explicit)
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil {
			for _, tag := range tags {
				base, _ := tag.Base()
				if t.Supports(base.String()) {
					return base.String()
				}
			}
		}
	}
	return t.fallback
}

// Message translates id. The id itself is returned when no translation exists.
func (t *Translator) Message(lang, id string, data map[string]interface{}) string {
	return t.localize(lang, &i18n.LocalizeConfig{MessageID: id, TemplateData: data})
}

// Badge returns the colleague-list badge for an annotated birthday: "today" or a pluralized "in N days".
func (t *Translator) Badge(lang string, p birthday.Proximity) string {
	if p.IsToday {
		return t.Message(lang, "BadgeToday", nil)
	}
	return t.localize(lang, &i18n.LocalizeConfig{
		MessageID:    "BadgeInDays",
		PluralCount:  p.DaysUntil,
		TemplateData: map[string]interface{}{"Count": p.DaysUntil},
	})
}

// Category returns the display label for a proximity category.
func (t *Translator) Category(lang string, c birthday.Category) string {
	switch c {
	case birthday.CategoryToday:
		return t.Message(lang, "CategoryToday", nil)
	case birthday.CategorySoon:
		return t.Message(lang, "CategorySoon", nil)
	case birthday.CategoryUpcoming:
		return t.Message(lang, "CategoryUpcoming", nil)
	default:
		return t.Message(lang, "CategoryLater", nil)
	}
}

func (t *Translator) localize(lang string, cfg *i18n.LocalizeConfig) string {
	if !t.Supports(lang) {
		lang = t.fallback
	}
	localizer := i18n.NewLocalizer(t.bundle, normalize(lang), t.fallback)
	msg, err := localizer.Localize(cfg)
	if err != nil {
		return cfg.MessageID
	}
	return msg
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}
