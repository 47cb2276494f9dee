package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-tplguard/internal/logging"
	"github.com/goliatone/go-tplguard/pkg/compiler"
	"github.com/goliatone/go-tplguard/pkg/prompt"
)

const testManifest = "../../pkg/manifest/testdata/tplguard.yaml"

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	if a == nil {
		a = &app{v: newViper(), build: BuildInfo{Version: "test"}, logger: logging.Discard()}
	}
	cmd := newRootCommand(a)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const leakyManifest = `
components:
  user:
    schema:
      type: object
      properties:
        name: {type: string}
templates:
  - name: ok
    source: "{{ name }}"
    components: [user]
  - name: leaky
    source: "{{ name }} {{ secret }}"
    components: [user]
`

func TestCheck_Passes(t *testing.T) {
	out, err := execute(t, nil, "check", testManifest)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{"TEMPLATE", "card.html", "page.html", "ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheck_ReportsUnauthorized(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tplguard.yaml", leakyManifest)

	out, err := execute(t, nil, "check", path)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 templates failed") {
		t.Fatalf("expected failure count, got %v", err)
	}
	if !strings.Contains(out, "unauthorized: secret") {
		t.Fatalf("output missing unauthorized variable:\n%s", out)
	}
}

func TestCheck_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tplguard.yaml", leakyManifest)

	out, _ := execute(t, nil, "check", "--json", path)
	var findings []compiler.Finding
	if err := json.Unmarshal([]byte(out), &findings); err != nil {
		t.Fatalf("decode findings: %v\n%s", err, out)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if diff := cmp.Diff([]string{"secret"}, findings[1].Unauthorized); diff != "" {
		t.Fatalf("unauthorized mismatch (-want +got):\n%s", diff)
	}
	if !findings[0].OK() {
		t.Fatalf("expected first template to pass: %+v", findings[0])
	}
}

func TestVars(t *testing.T) {
	out, err := execute(t, nil, "vars", testManifest, "card.html")
	if err != nil {
		t.Fatalf("vars: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var got [][]string
	for _, line := range lines[1:] {
		got = append(got, strings.Fields(line))
	}
	want := [][]string{{"address.city", "user"}, {"name", "user"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("vars mismatch (-want +got):\n%s", diff)
	}

	if _, err := execute(t, nil, "vars", testManifest, "missing.html"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRender_ContextFile(t *testing.T) {
	dir := t.TempDir()
	ctxPath := writeFile(t, dir, "ctx.yaml", "name: Ada\naddress:\n  city: Paris\ncondition: true\n")

	out, err := execute(t, nil, "render", testManifest, "page.html", "--context", ctxPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "<b>Ada</b> from Paris!" {
		t.Fatalf("got %q", out)
	}

	outPath := filepath.Join(dir, "out.html")
	if _, err := execute(t, nil, "render", testManifest, "card.html", "--context", ctxPath, "-o", outPath); err != nil {
		t.Fatalf("render to file: %v", err)
	}
	written, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(written) != "<b>Ada</b> from Paris" {
		t.Fatalf("file got %q", written)
	}
}

func TestRender_StrictMissingContext(t *testing.T) {
	if _, err := execute(t, nil, "render", testManifest, "card.html"); err == nil {
		t.Fatal("expected strict render to fail without context")
	}
	if _, err := execute(t, nil, "render", "--strict=false", testManifest, "card.html"); err != nil {
		t.Fatalf("lenient render: %v", err)
	}
}

func TestRender_Sanitize(t *testing.T) {
	ctxPath := writeFile(t, t.TempDir(), "ctx.json", `{"name":"Ada","address":{"city":"Paris"}}`)

	out, err := execute(t, nil, "render", testManifest, "card.html", "--context", ctxPath, "--sanitize", "strict")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Ada from Paris" {
		t.Fatalf("got %q", out)
	}

	if _, err := execute(t, nil, "render", testManifest, "card.html", "--sanitize", "bogus"); err == nil {
		t.Fatal("expected unknown sanitizer error")
	}
}

type defaultDriver struct {
	asked []string
}

func (d *defaultDriver) Input(_ context.Context, cfg prompt.InputConfig) (string, error) {
	d.asked = append(d.asked, cfg.Message)
	if cfg.Default != "" {
		return cfg.Default, nil
	}
	return "Grace", nil
}

func (d *defaultDriver) Confirm(_ context.Context, cfg prompt.ConfirmConfig) (bool, error) {
	d.asked = append(d.asked, cfg.Message)
	return true, nil
}

func (d *defaultDriver) Select(_ context.Context, cfg prompt.SelectConfig) (int, error) {
	d.asked = append(d.asked, cfg.Message)
	return cfg.DefaultIndex, nil
}

func (d *defaultDriver) TextArea(_ context.Context, cfg prompt.TextAreaConfig) (string, error) {
	d.asked = append(d.asked, cfg.Message)
	return cfg.Default, nil
}

func TestRender_Interactive(t *testing.T) {
	ctxPath := writeFile(t, t.TempDir(), "ctx.json", `{"address":{"city":"Paris"}}`)
	driver := &defaultDriver{}
	a := &app{v: newViper(), logger: logging.Discard(), driver: driver}

	out, err := execute(t, a, "render", testManifest, "page.html", "--context", ctxPath, "--interactive")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "<b>Grace</b> from Paris!" {
		t.Fatalf("got %q", out)
	}
	if diff := cmp.Diff([]string{"address.city", "condition", "name"}, driver.asked); diff != "" {
		t.Fatalf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tplguard.yaml", leakyManifest)
	cfgPath := writeFile(t, dir, "config.yaml", "policy: nonsense\n")

	if _, err := execute(t, nil, "check", "--config", cfgPath, path); err == nil || !strings.Contains(err.Error(), "nonsense") {
		t.Fatalf("expected config file policy to apply, got %v", err)
	}

	t.Setenv("TPLGUARD_POLICY", "also-nonsense")
	if _, err := execute(t, nil, "check", "--config", cfgPath, path); err == nil || !strings.Contains(err.Error(), "also-nonsense") {
		t.Fatalf("expected environment to override config file, got %v", err)
	}

	_, err := execute(t, nil, "check", "--config", cfgPath, "--policy", "atomic", path)
	if err == nil || !strings.Contains(err.Error(), "templates failed checks") {
		t.Fatalf("expected flag to override environment, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	a := &app{v: newViper(), build: BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}, logger: logging.Discard()}
	out, err := execute(t, a, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "tplguard 1.2.3 (commit abc, built today)\n" {
		t.Fatalf("got %q", out)
	}
}

func TestFlattenAndMerge(t *testing.T) {
	data := map[string]any{
		"name":    "Ada",
		"address": map[string]any{"city": "Paris", "geo": map[string]any{"lat": 48.8}},
	}
	wantFlat := map[string]any{"name": "Ada", "address.city": "Paris", "address.geo.lat": 48.8}
	if diff := cmp.Diff(wantFlat, flatten(data, "")); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}

	merged := merge(data, map[string]any{"address": map[string]any{"city": "Rome"}, "extra": true})
	want := map[string]any{
		"name":    "Ada",
		"extra":   true,
		"address": map[string]any{"city": "Rome", "geo": map[string]any{"lat": 48.8}},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}
