package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/avantix/internal/domain"
)

const sampleYAML = `
name: sample
description: demo flow
on_error: continue
steps:
  - action: print
    params:
      message: "start"
  - action: wait
    params:
      seconds: 2
    on_error: stop
  - action: print
    continue_on_error: true
`

const sampleJSON = `{
  "name": "json-flow",
  "steps": [
    {"action": "print", "params": {"message": "hi", "nested": {"n": 1}}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestParse_YAML(t *testing.T) {
	spec, err := Parse([]byte(sampleYAML), "sample.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "sample" || spec.Description != "demo flow" {
		t.Errorf("unexpected header: %+v", spec)
	}
	if spec.OnError != domain.PolicyContinue {
		t.Errorf("expected continue, got %q", spec.OnError)
	}
	if len(spec.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(spec.Steps))
	}
	if spec.Steps[0].Params["message"] != "start" {
		t.Errorf("unexpected params: %v", spec.Steps[0].Params)
	}
	if spec.Steps[1].Params["seconds"] != 2 {
		t.Errorf("expected int seconds, got %v (%T)", spec.Steps[1].Params["seconds"], spec.Steps[1].Params["seconds"])
	}
	if spec.Steps[1].OnError != domain.PolicyStop {
		t.Errorf("expected step override stop, got %q", spec.Steps[1].OnError)
	}
	if !spec.Steps[2].ContinueOnError {
		t.Error("expected legacy continue_on_error")
	}
	if spec.Steps[2].Params == nil {
		t.Error("params should default to empty map")
	}
}

func TestParse_JSON(t *testing.T) {
	spec, err := Parse([]byte(sampleJSON), "flow.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "json-flow" || len(spec.Steps) != 1 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	nested, ok := spec.Steps[0].Params["nested"].(map[string]any)
	if !ok || nested["n"] != 1 {
		t.Errorf("expected nested map, got %v", spec.Steps[0].Params["nested"])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"list root", "- action: print\n"},
		{"scalar root", "just a string\n"},
		{"broken yaml", "name: [unclosed\n"},
		{"wrong steps type", "name: x\nsteps: 5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "bad.yaml")
			if !errors.Is(err, ErrInvalidFlow) {
				t.Fatalf("expected ErrInvalidFlow, got %v", err)
			}
			var pErr *ParseError
			if !errors.As(err, &pErr) || pErr.Path != "bad.yaml" {
				t.Errorf("expected ParseError with path, got %v", err)
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.yaml", sampleYAML)
	jsonPath := writeFile(t, dir, "other.json", sampleJSON)

	l := New(dir)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"file name", "sample.yaml", "sample"},
		{"name without extension", "sample", "sample"},
		{"json without extension", "other", "json-flow"},
		{"absolute path", jsonPath, "json-flow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := l.Load(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec.Name != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, spec.Name)
			}
		})
	}
}

func TestLoader_NotFound(t *testing.T) {
	l := New(t.TempDir())

	for _, name := range []string{"", "missing", "missing.yaml"} {
		if _, err := l.Load(name); !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("%q: expected ErrFlowNotFound, got %v", name, err)
		}
	}
}

func TestLoader_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", sampleYAML)
	writeFile(t, dir, "a.json", sampleJSON)
	writeFile(t, dir, "broken.yml", "- not a mapping\n")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	infos, err := New(dir).List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(infos) != 3 {
		t.Fatalf("expected 3 flows, got %+v", infos)
	}
	if infos[0].File != "a.json" || infos[1].File != "b.yaml" || infos[2].File != "broken.yml" {
		t.Errorf("unexpected order: %+v", infos)
	}
	if infos[1].Name != "sample" || infos[1].Steps != 3 || infos[1].OnError != "continue" {
		t.Errorf("unexpected info: %+v", infos[1])
	}
	if infos[2].Error == "" {
		t.Error("expected parse error for broken.yml")
	}
}

func TestLoader_ListMissingDir(t *testing.T) {
	infos, err := New(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("expected empty list, got %v", infos)
	}
}
