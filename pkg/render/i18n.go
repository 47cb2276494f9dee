package render

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// ErrMissingTranslator is passed to the missing handler when translation
// helpers run without a Translator.
var ErrMissingTranslator = errors.New("render: translator not configured")

// ErrMissingTranslation is returned by CatalogTranslator for unknown keys.
var ErrMissingTranslation = errors.New("render: translation not found")

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler produces the text used when a key cannot be
// translated.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

func missingTranslationDefault(_ string, key string, _ []any, _ error) string {
	return key
}

// TemplateI18nConfig configures the template translation helpers.
type TemplateI18nConfig struct {
	// LocaleKey selects the key used to read the locale from a map or struct
	// passed as the first helper argument. Defaults to "locale".
	LocaleKey string
	// FuncName renames the translate helper. Defaults to "translate".
	FuncName string
	// OnMissing controls the text returned for missing translations.
	OnMissing MissingTranslationHandler
}

// TemplateI18nFuncs returns engine globals for templates:
//
//	{{ translate(locale, "greeting", name) }}
//	{{ current_locale(user) }}
//
// The first argument is either a locale string or a map/struct carrying one
// under cfg.LocaleKey. Helper names are engine globals, so they never count as
// template variables; their arguments do.
func TemplateI18nFuncs(t Translator, cfg TemplateI18nConfig) map[string]any {
	localeKey := strings.TrimSpace(cfg.LocaleKey)
	if localeKey == "" {
		localeKey = "locale"
	}

	translateName := strings.TrimSpace(cfg.FuncName)
	if translateName == "" {
		translateName = "translate"
	}

	onMissing := cfg.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}

	return map[string]any{
		translateName: func(localeSrc any, key string, params ...any) string {
			key = strings.TrimSpace(key)
			if key == "" {
				return ""
			}
			locale := resolveLocale(localeSrc, localeKey)
			if t == nil {
				return onMissing(locale, key, params, ErrMissingTranslator)
			}
			msg, err := t.Translate(locale, key, params...)
			if err != nil || strings.TrimSpace(msg) == "" {
				return onMissing(locale, key, params, err)
			}
			return msg
		},
		"current_locale": func(localeSrc any) string {
			return resolveLocale(localeSrc, localeKey)
		},
	}
}

func resolveLocale(src any, key string) string {
	if src == nil {
		return ""
	}
	if str, ok := src.(string); ok {
		return str
	}
	if key == "" {
		return ""
	}

	switch data := src.(type) {
	case map[string]any:
		if v, ok := data[key]; ok && v != nil {
			if str, ok := v.(string); ok {
				return str
			}
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	case map[string]string:
		return data[key]
	}

	value := reflect.ValueOf(src)
	for value.IsValid() && value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ""
		}
		value = value.Elem()
	}
	if !value.IsValid() {
		return ""
	}

	switch value.Kind() {
	case reflect.Struct:
		field := value.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, key)
		})
		if field.IsValid() && field.Kind() == reflect.String {
			return field.String()
		}
	case reflect.Map:
		if value.Type().Key().Kind() == reflect.String {
			val := value.MapIndex(reflect.ValueOf(key))
			if val.IsValid() && val.Kind() == reflect.String {
				return val.String()
			}
		}
	}
	return ""
}

// CatalogTranslator translates keys through an x/text message catalog.
// Messages are fmt-style formats applied to the helper's extra arguments.
type CatalogTranslator struct {
	builder  *catalog.Builder
	fallback language.Tag
	matcher  language.Matcher
	tags     []language.Tag
	known    map[language.Tag]map[string]struct{}

	mu       sync.Mutex
	printers map[language.Tag]*message.Printer
}

// NewCatalogTranslator builds a translator from messages keyed by locale then
// message key. fallback is used for unknown or unparsable locales.
func NewCatalogTranslator(fallback string, messages map[string]map[string]string) (*CatalogTranslator, error) {
	fallbackTag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("render: parse fallback locale %q: %w", fallback, err)
	}

	t := &CatalogTranslator{
		builder:  catalog.NewBuilder(catalog.Fallback(fallbackTag)),
		fallback: fallbackTag,
		known:    make(map[language.Tag]map[string]struct{}),
		printers: make(map[language.Tag]*message.Printer),
	}
	for locale, entries := range messages {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("render: parse locale %q: %w", locale, err)
		}
		if t.known[tag] == nil {
			t.known[tag] = make(map[string]struct{}, len(entries))
			t.tags = append(t.tags, tag)
		}
		for key, msg := range entries {
			if err := t.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("render: add %s message %q: %w", locale, key, err)
			}
			t.known[tag][key] = struct{}{}
		}
	}
	if len(t.tags) > 0 {
		t.matcher = language.NewMatcher(t.tags)
	}
	return t, nil
}

// Translate implements Translator.
func (t *CatalogTranslator) Translate(locale, key string, args ...any) (string, error) {
	tag := t.match(locale)
	if _, ok := t.known[tag][key]; !ok {
		if _, ok := t.known[t.fallback][key]; !ok {
			return "", fmt.Errorf("%w: %s %q", ErrMissingTranslation, tag, key)
		}
		tag = t.fallback
	}
	return t.printer(tag).Sprintf(key, args...), nil
}

func (t *CatalogTranslator) match(locale string) language.Tag {
	if t.matcher == nil {
		return t.fallback
	}
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return t.fallback
	}
	_, index, confidence := t.matcher.Match(requested)
	if confidence == language.No {
		return t.fallback
	}
	return t.tags[index]
}

func (t *CatalogTranslator) printer(tag language.Tag) *message.Printer {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.printers[tag]
	if !ok {
		p = message.NewPrinter(tag, message.Catalog(t.builder))
		t.printers[tag] = p
	}
	return p
}
