package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	tool, err := r.Get("echo")
	if err != nil {
		t.Fatalf("get echo: %v", err)
	}
	if tool.Name() != "echo" {
		t.Errorf("name = %s", tool.Name())
	}

	if _, err := r.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	names := r.Names()
	want := []string{"dns_lookup", "echo", "header_scan", "http_probe", "sleep"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestBackendResourceKey(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	b := NewBackend(r)

	key := b.ResourceKey("http_probe", map[string]any{"target": "https://example.com/path"})
	if key != "https://example.com/path" {
		t.Errorf("key = %q", key)
	}

	if key := b.ResourceKey("echo", map[string]any{"value": "x"}); key != "" {
		t.Errorf("local tool must have no resource key, got %q", key)
	}
	if key := b.ResourceKey("http_probe", map[string]any{}); key != "" {
		t.Errorf("missing resource arg must yield empty key, got %q", key)
	}
}

func TestBackendExecuteDispatches(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	b := NewBackend(r)

	out, err := b.Execute(context.Background(), "echo", map[string]any{"value": "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %v", out)
	}

	if _, err := b.Execute(context.Background(), "nonexistent", nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRenderSpecs(t *testing.T) {
	specs := []Spec{
		{
			Name:        "http_probe",
			Description: "Fetch a URL",
			Args: []ArgSpec{
				{Name: "target", Type: "string", Required: true, Description: "URL to probe"},
				{Name: "method", Type: "string"},
			},
		},
	}

	out := RenderSpecs(specs)
	if !strings.Contains(out, "http_probe(target: string, method: string?)") {
		t.Errorf("rendered signature missing:\n%s", out)
	}
	if !strings.Contains(out, "target: URL to probe") {
		t.Errorf("rendered arg description missing:\n%s", out)
	}
}
