package render_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-tplguard/pkg/render"
	"github.com/goliatone/go-tplguard/pkg/render/template/jinja"
)

func newTranslator(t *testing.T) *render.CatalogTranslator {
	t.Helper()
	translator, err := render.NewCatalogTranslator("en", map[string]map[string]string{
		"en": {"greeting": "Hello %s", "farewell": "Bye"},
		"fr": {"greeting": "Bonjour %s"},
	})
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	return translator
}

func TestCatalogTranslator(t *testing.T) {
	translator := newTranslator(t)

	tests := []struct {
		locale string
		key    string
		want   string
	}{
		{locale: "fr-FR", key: "greeting", want: "Bonjour Ada"},
		{locale: "en-GB", key: "greeting", want: "Hello Ada"},
		{locale: "not a locale", key: "greeting", want: "Hello Ada"},
	}
	for _, tt := range tests {
		got, err := translator.Translate(tt.locale, tt.key, "Ada")
		if err != nil {
			t.Fatalf("Translate(%q, %q): %v", tt.locale, tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("Translate(%q, %q) = %q, want %q", tt.locale, tt.key, got, tt.want)
		}
	}

	if got, err := translator.Translate("fr", "farewell"); err != nil || got != "Bye" {
		t.Fatalf("expected fallback locale message, got %q, %v", got, err)
	}
	if _, err := translator.Translate("en", "unknown"); !errors.Is(err, render.ErrMissingTranslation) {
		t.Fatalf("expected ErrMissingTranslation, got %v", err)
	}
}

func TestTemplateI18nFuncs_InTemplates(t *testing.T) {
	funcs := render.TemplateI18nFuncs(newTranslator(t), render.TemplateI18nConfig{
		OnMissing: func(_ string, key string, _ []any, _ error) string {
			return "??" + key
		},
	})
	engine := newEngine(t, map[string]string{
		"greet":   `{{ translate(user, "greeting", user.name) }} [{{ current_locale(user) }}]`,
		"missing": `{{ translate(locale, "nope") }}`,
	}, jinja.WithTemplateFunc(funcs))

	r := render.New(engine)
	got, err := r.Render(context.Background(), "greet", map[string]any{
		"user": map[string]any{"name": "Ada", "locale": "fr"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Bonjour Ada [fr]" {
		t.Fatalf("unexpected output %q", got)
	}

	got, err = r.Render(context.Background(), "missing", map[string]any{"locale": "en"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "??nope" {
		t.Fatalf("unexpected output %q", got)
	}

	info, _ := engine.Lookup("greet")
	for _, v := range info.Variables {
		if v == "translate" || v == "current_locale" {
			t.Fatalf("helper %q reported as a variable", v)
		}
	}
}

func TestTemplateI18nFuncs_WithoutTranslator(t *testing.T) {
	funcs := render.TemplateI18nFuncs(nil, render.TemplateI18nConfig{FuncName: "t"})
	translate, ok := funcs["t"].(func(any, string, ...any) string)
	if !ok {
		t.Fatalf("expected renamed translate helper, got %T", funcs["t"])
	}
	if got := translate("en", "title"); got != "title" {
		t.Fatalf("expected key fallback, got %q", got)
	}
}
