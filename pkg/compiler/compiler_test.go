package compiler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-tplguard/pkg/compiler"
	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/registry"
	"github.com/goliatone/go-tplguard/pkg/render/template/jinja"
	"github.com/goliatone/go-tplguard/pkg/testsupport"
)

func setup(t *testing.T, options ...compiler.Option) (*compiler.Compiler, *jinja.Engine) {
	t.Helper()

	reg := registry.New()
	ctx := testsupport.Context()
	if err := reg.Register(ctx, "user", testsupport.MustDecode(t, `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"address": {"type": "object", "properties": {"city": {"type": "string"}}}
		}
	}`)); err != nil {
		t.Fatalf("register user: %v", err)
	}
	if err := reg.Register(ctx, "flags", testsupport.MustDecode(t, `{
		"type": "object",
		"properties": {"condition": {"type": "boolean"}}
	}`)); err != nil {
		t.Fatalf("register flags: %v", err)
	}

	engine, err := jinja.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return compiler.New(engine, reg, options...), engine
}

func TestCompile_Authorized(t *testing.T) {
	c, engine := setup(t)
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "hello", Source: "Hello {{ name }} from {{ address.city }}", Components: []string{"user"}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	info, ok := engine.Lookup("hello")
	if !ok {
		t.Fatalf("expected hello to be compiled")
	}
	if diff := cmp.Diff([]string{"user"}, info.Components); diff != "" {
		t.Fatalf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_OrAcrossComponents(t *testing.T) {
	c, engine := setup(t)
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "mixed", Source: "{% if condition %}{{ name }}{% endif %}", Components: []string{"user", "flags"}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := engine.Render("mixed", map[string]any{"condition": true, "name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Ada" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCompile_UnauthorizedVariable(t *testing.T) {
	c, engine := setup(t)
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "leak", Source: "{{ name }} {{ secret }}", Components: []string{"user"}},
	})

	tgErr, ok := tgerrors.As(err)
	if !ok || tgErr.Kind != tgerrors.KindSchemaValidation {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}
	if tgErr.Variable != "secret" || tgErr.Template != "leak" {
		t.Fatalf("unexpected error details %+v", tgErr)
	}
	if tgErr.Message != "variable 'secret' is not allowed by schema" {
		t.Fatalf("unexpected message %q", tgErr.Message)
	}
	if _, ok := engine.Lookup("leak"); ok {
		t.Fatalf("rejected template must not be compiled")
	}
}

func TestCompile_UnknownComponentsContributeNothing(t *testing.T) {
	c, _ := setup(t)
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "ghost", Source: "{{ name }}", Components: []string{"missing"}},
	})
	if !tgerrors.Is(err, tgerrors.KindSchemaValidation) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}

	err = c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "static", Source: "no variables", Components: []string{"missing"}},
	})
	if err != nil {
		t.Fatalf("templates without variables need no components: %v", err)
	}
}

func TestCompile_AtomicRollsBack(t *testing.T) {
	c, engine := setup(t)
	ctx := context.Background()
	if err := c.Compile(ctx, []compiler.TemplateSource{
		{Name: "a", Source: "old {{ name }}", Components: []string{"user"}},
	}); err != nil {
		t.Fatalf("seed compile: %v", err)
	}

	err := c.Compile(ctx, []compiler.TemplateSource{
		{Name: "a", Source: "new {{ name }}", Components: []string{"user"}},
		{Name: "b", Source: "{{ name }}", Components: []string{"user"}},
		{Name: "c", Source: "{{ secret }}", Components: []string{"user"}},
	})
	if !tgerrors.Is(err, tgerrors.KindSchemaValidation) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}

	if diff := cmp.Diff([]string{"a"}, engine.List()); diff != "" {
		t.Fatalf("atomic batch leaked templates (-want +got):\n%s", diff)
	}
	got, err := engine.Render("a", map[string]any{"name": "Ada"})
	if err != nil || got != "old Ada" {
		t.Fatalf("previous version should survive, got %q, %v", got, err)
	}
}

func TestCompile_FailFastKeepsEarlierTemplates(t *testing.T) {
	c, engine := setup(t, compiler.WithPolicy(compiler.PolicyFailFast))
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "first", Source: "{{ name }}", Components: []string{"user"}},
		{Name: "second", Source: "{{ secret }}", Components: []string{"user"}},
		{Name: "third", Source: "{{ name }}", Components: []string{"user"}},
	})
	if !tgerrors.Is(err, tgerrors.KindSchemaValidation) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"first"}, engine.List()); diff != "" {
		t.Fatalf("compiled set mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_FailFastEvictsFailedRecompile(t *testing.T) {
	c, engine := setup(t, compiler.WithPolicy(compiler.PolicyFailFast))
	ctx := context.Background()
	if err := c.Compile(ctx, []compiler.TemplateSource{
		{Name: "page", Source: "{{ name }}", Components: []string{"user"}},
	}); err != nil {
		t.Fatalf("seed compile: %v", err)
	}
	if err := c.Compile(ctx, []compiler.TemplateSource{
		{Name: "page", Source: "{% if %}", Components: []string{"user"}},
	}); !tgerrors.Is(err, tgerrors.KindParse) {
		t.Fatalf("expected ParseError, got %v", err)
	}

	if _, err := engine.Render("page", map[string]any{"name": "Ada"}); !tgerrors.Is(err, tgerrors.KindTemplateNotFound) {
		t.Fatalf("expected TemplateNotFound, got %v", err)
	}
}

func TestCompile_BestEffortCollectsFailures(t *testing.T) {
	c, engine := setup(t, compiler.WithPolicy(compiler.PolicyBestEffort))
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "ok", Source: "{{ name }}", Components: []string{"user"}},
		{Name: "leak", Source: "{{ password }}", Components: []string{"user"}},
		{Name: "orphan", Source: `{% include "card.html" %}`, Components: []string{"user"}},
		{Name: "also-ok", Source: "{{ condition }}", Components: []string{"flags"}},
	})

	var batch *tgerrors.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	var kinds []tgerrors.Kind
	for _, e := range batch.Errors {
		kinds = append(kinds, e.Kind)
	}
	want := []tgerrors.Kind{tgerrors.KindSchemaValidation, tgerrors.KindMissingDependency}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("batch kinds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"card.html"}, batch.Errors[1].MissingDependencies); diff != "" {
		t.Fatalf("missing dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"also-ok", "ok"}, engine.List()); diff != "" {
		t.Fatalf("compiled set mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_IncludeAcrossBatch(t *testing.T) {
	c, engine := setup(t)
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "card.html", Source: "<i>{{ name }}</i>", Components: []string{"user"}},
		{Name: "page.html", Source: `{% include "card.html" %}`, Components: []string{"user"}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := engine.Render("page.html", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<i>Ada</i>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCompile_IncludedReadsNeedIncluderComponents(t *testing.T) {
	c, engine := setup(t, compiler.WithPolicy(compiler.PolicyBestEffort))
	err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "card.html", Source: "{{ name }}", Components: []string{"user"}},
		{Name: "bare.html", Source: `A:{% include "card.html" %}`},
		{Name: "flags.html", Source: `{% include "card.html" %}{{ condition }}`, Components: []string{"flags"}},
	})

	var batch *tgerrors.BatchError
	if !errors.As(err, &batch) || len(batch.Errors) != 2 {
		t.Fatalf("expected two failures, got %v", err)
	}
	for _, e := range batch.Errors {
		if e.Kind != tgerrors.KindSchemaValidation || e.Variable != "name" {
			t.Fatalf("expected included variable 'name' to be rejected, got %+v", e)
		}
	}
	if _, err := engine.Render("bare.html", map[string]any{"name": "LEAKED"}); !tgerrors.Is(err, tgerrors.KindTemplateNotFound) {
		t.Fatalf("expected TemplateNotFound, got %v", err)
	}
}

func TestCompile_RecompiledIncludeRevalidatesDependents(t *testing.T) {
	sources := []compiler.TemplateSource{
		{Name: "card.html", Source: "{{ name }}", Components: []string{"user", "flags"}},
		{Name: "page.html", Source: `[{% include "card.html" %}]`, Components: []string{"user"}},
	}
	widened := compiler.TemplateSource{Name: "card.html", Source: "{{ condition }}", Components: []string{"user", "flags"}}

	t.Run("atomic keeps the old set", func(t *testing.T) {
		c, engine := setup(t)
		if err := c.Compile(context.Background(), sources); err != nil {
			t.Fatalf("compile: %v", err)
		}

		err := c.Compile(context.Background(), []compiler.TemplateSource{widened})
		typed, ok := tgerrors.As(err)
		if !ok || typed.Kind != tgerrors.KindSchemaValidation || typed.Template != "page.html" || typed.Variable != "condition" {
			t.Fatalf("expected page.html to fail on 'condition', got %v", err)
		}
		got, err := engine.Render("page.html", map[string]any{"name": "Ada"})
		if err != nil || got != "[Ada]" {
			t.Fatalf("page should render the previous card, got %q, %v", got, err)
		}
	})

	t.Run("includer parsed before the change", func(t *testing.T) {
		c, engine := setup(t, compiler.WithPolicy(compiler.PolicyBestEffort))
		if err := c.Compile(context.Background(), sources); err != nil {
			t.Fatalf("compile: %v", err)
		}

		err := c.Compile(context.Background(), []compiler.TemplateSource{sources[1], widened})
		var batch *tgerrors.BatchError
		if !errors.As(err, &batch) || len(batch.Errors) != 1 || batch.Errors[0].Variable != "condition" {
			t.Fatalf("expected page.html to fail on 'condition', got %v", err)
		}
		if _, err := engine.Render("page.html", map[string]any{"condition": "LEAKED"}); !tgerrors.Is(err, tgerrors.KindTemplateNotFound) {
			t.Fatalf("expected TemplateNotFound, got %v", err)
		}
	})

	t.Run("best effort evicts the dependent", func(t *testing.T) {
		c, engine := setup(t, compiler.WithPolicy(compiler.PolicyBestEffort))
		if err := c.Compile(context.Background(), sources); err != nil {
			t.Fatalf("compile: %v", err)
		}

		err := c.Compile(context.Background(), []compiler.TemplateSource{widened})
		var batch *tgerrors.BatchError
		if !errors.As(err, &batch) || len(batch.Errors) != 1 || batch.Errors[0].Template != "page.html" {
			t.Fatalf("expected page.html in the batch error, got %v", err)
		}
		if diff := cmp.Diff([]string{"card.html"}, engine.List()); diff != "" {
			t.Fatalf("compiled set mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompile_Canceled(t *testing.T) {
	c, engine := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Compile(ctx, []compiler.TemplateSource{{Name: "x", Source: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(engine.List()) != 0 {
		t.Fatalf("canceled batch should not commit")
	}
}

func TestCompile_Observer(t *testing.T) {
	var mu sync.Mutex
	outcomes := map[string]bool{}
	c, _ := setup(t,
		compiler.WithPolicy(compiler.PolicyBestEffort),
		compiler.WithObserver(func(name string, _ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			outcomes[name] = err == nil
		}),
	)
	_ = c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "good", Source: "{{ name }}", Components: []string{"user"}},
		{Name: "bad", Source: "{{ nope }}", Components: []string{"user"}},
	})

	if diff := cmp.Diff(map[string]bool{"good": true, "bad": false}, outcomes); diff != "" {
		t.Fatalf("observer outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_ReportsEveryViolationWithoutCommitting(t *testing.T) {
	c, engine := setup(t)
	findings, err := c.Check(context.Background(), []compiler.TemplateSource{
		{Name: "leak", Source: "{{ name }} {{ secret }} {{ address.zip }}", Components: []string{"user"}},
		{Name: "broken", Source: "{% for %}"},
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if diff := cmp.Diff([]string{"address.zip", "secret"}, findings[0].Unauthorized); diff != "" {
		t.Fatalf("unauthorized mismatch (-want +got):\n%s", diff)
	}
	if findings[0].OK() || findings[1].OK() {
		t.Fatalf("both findings should fail")
	}
	if findings[1].Error == nil || findings[1].Error.Kind != tgerrors.KindParse {
		t.Fatalf("expected ParseError finding, got %+v", findings[1].Error)
	}
	if len(engine.List()) != 0 {
		t.Fatalf("check must not commit templates")
	}
}

func TestCheck_CountsIncludedReads(t *testing.T) {
	c, _ := setup(t)
	if err := c.Compile(context.Background(), []compiler.TemplateSource{
		{Name: "card.html", Source: "{{ name }}", Components: []string{"user", "flags"}},
		{Name: "page.html", Source: `{% include "card.html" %}`, Components: []string{"user"}},
	}); err != nil {
		t.Fatalf("compile: %v", err)
	}

	findings, err := c.Check(context.Background(), []compiler.TemplateSource{
		{Name: "early.html", Source: `{% include "card.html" %}`, Components: []string{"user"}},
		{Name: "card.html", Source: "{{ condition }}", Components: []string{"user", "flags"}},
		{Name: "shell.html", Source: `{% include "card.html" %}{{ name }}`, Components: []string{"user"}},
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	got := make(map[string][]string, len(findings))
	for _, f := range findings {
		got[f.Name] = f.Unauthorized
	}
	want := map[string][]string{
		"early.html": {"condition"},
		"card.html":  nil,
		"shell.html": {"condition"},
		"page.html":  {"condition"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unauthorized mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []compiler.Policy{compiler.PolicyAtomic, compiler.PolicyFailFast, compiler.PolicyBestEffort} {
		got, err := compiler.ParsePolicy(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := compiler.ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected unknown policy error")
	}
}
