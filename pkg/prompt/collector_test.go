package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubDriver struct {
	inputs    []string
	selectIdx []int
	confirm   []bool
	textAreas []string
	inputPos  int
	selectPos int
	confirmPs int
	textPos   int
	asked     []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	if cfg.Validator != nil {
		if err := cfg.Validator(val); err != nil {
			return "", err
		}
	}
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.asked = append(s.asked, cfg.Message)
	if s.confirmPs >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPs]
	s.confirmPs++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.asked = append(s.asked, cfg.Message)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, cfg TextAreaConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no text scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

var userSchema = map[string]any{
	"properties": map[string]any{
		"address": map[string]any{
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
		},
		"name":  map[string]any{"type": "string"},
		"age":   map[string]any{"type": "integer"},
		"score": map[string]any{"type": []any{"null", "number"}},
		"admin": map[string]any{"type": "boolean"},
		"role":  map[string]any{"enum": []any{"editor", "viewer"}},
		"tags":  map[string]any{"type": "array"},
		"extra": map[string]any{"type": "object"},
	},
}

func TestCollect(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"Paris", "42", "Ada", "9.5", "go, templates"},
		confirm:   []bool{true},
		selectIdx: []int{1},
		textAreas: []string{`{"k": 1}`},
	}
	c := New(WithDriver(driver))

	got, err := c.Collect(context.Background(),
		[]string{"name", "address", "address.city", "age", "admin", "role", "score", "tags", "extra", "name"},
		[]map[string]any{userSchema},
	)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	want := map[string]any{
		"address": map[string]any{"city": "Paris"},
		"admin":   true,
		"age":     int64(42),
		"extra":   map[string]any{"k": float64(1)},
		"name":    "Ada",
		"role":    "viewer",
		"score":   9.5,
		"tags":    []any{"go", "templates"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}

	wantAsked := []string{
		"address.city",
		"admin",
		"age",
		"extra (JSON)",
		"name",
		"role",
		"score",
		"tags (comma separated)",
	}
	if diff := cmp.Diff(wantAsked, driver.asked); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_UnknownPathIsText(t *testing.T) {
	driver := &stubDriver{inputs: []string{"free"}}
	got, err := New(WithDriver(driver)).Collect(context.Background(), []string{"misc.note"}, nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"misc": map[string]any{"note": "free"}}, got); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_Errors(t *testing.T) {
	driver := &stubDriver{inputs: []string{"not-a-number"}}
	_, err := New(WithDriver(driver)).Collect(context.Background(), []string{"age"}, []map[string]any{userSchema})
	if !errors.Is(err, errNotNumber) {
		t.Fatalf("expected validation error, got %v", err)
	}

	aborted := &stubDriver{}
	_, err = New(WithDriver(aborted)).Collect(context.Background(), []string{"admin"}, []map[string]any{userSchema})
	if err == nil {
		t.Fatalf("expected error when the driver fails")
	}
}

func TestLeafPaths(t *testing.T) {
	got := leafPaths([]string{"a.b", "a", "", "ab", "a.b.c", "ab"})
	if diff := cmp.Diff([]string{"a.b.c", "ab"}, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}
