package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/executor"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

func writeSkill(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

func newRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	loader, err := manifest.NewLoader(dir)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	reg, err := New(loader, executor.Deps{ImageGenSkill: "nano-banana-image-gen", Images: executor.NewImageGenClient("http://x", "", "")}, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestRegistryLoadOrderAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "b.yaml", "name: web-search\ndescription: Search the web.\nruntime:\n  type: service\n  endpoint: http://s\n")
	writeSkill(t, dir, "a.yaml", "name: excel-skill\ndescription: Process spreadsheets.\nruntime:\n  type: anthropic\n  skill_id: excel-v1\n")

	reg := newRegistry(t, dir)

	manifests := reg.Manifests()
	if len(manifests) != 2 || manifests[0].Name != "excel-skill" || manifests[1].Name != "web-search" {
		t.Fatalf("unexpected load order: %v", manifests)
	}

	if _, ok := reg.Manifest("web-search"); !ok {
		t.Error("manifest lookup failed")
	}
	if _, ok := reg.Manifest("nope"); ok {
		t.Error("expected lookup miss")
	}
}

func TestRegistryToolNameNormalization(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: web-search\ndescription: Search the web.\nruntime:\n  type: service\n  endpoint: http://s\n")
	reg := newRegistry(t, dir)

	tool, err := reg.Tool("web-search")
	if err != nil {
		t.Fatalf("tool by skill name: %v", err)
	}
	if tool.Name() != "web_search" {
		t.Errorf("expected normalized name, got %s", tool.Name())
	}

	// Normalized name resolves too, and to the same cached instance.
	again, err := reg.Tool("web_search")
	if err != nil {
		t.Fatalf("tool by normalized name: %v", err)
	}
	if tool != again {
		t.Error("tool not cached within snapshot")
	}

	def := tool.Definition()
	if def.Function.Name != "web_search" || def.Function.Description == "" {
		t.Errorf("unexpected definition: %+v", def.Function)
	}
}

func TestRegistryToolNotFound(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: one\ndescription: one.\nruntime:\n  type: docker\n  image: i\n")
	reg := newRegistry(t, dir)

	if _, err := reg.Tool("missing"); !serrors.HasCode(err, serrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: one\ndescription: one.\nruntime:\n  type: docker\n  image: i\n")
	reg := newRegistry(t, dir)

	before, err := reg.Tool("one")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}

	writeSkill(t, dir, "t.yaml", "name: two\ndescription: two.\nruntime:\n  type: service\n  endpoint: http://t\n")
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if len(reg.Manifests()) != 2 {
		t.Fatalf("expected 2 manifests after reload, got %d", len(reg.Manifests()))
	}
	after, err := reg.Tool("one")
	if err != nil {
		t.Fatalf("tool after reload: %v", err)
	}
	if before == after {
		t.Error("reload should invalidate cached tools")
	}
}

func TestRegistryReloadFailureKeepsServing(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: one\ndescription: one.\nruntime:\n  type: docker\n  image: i\n")
	reg := newRegistry(t, dir)

	writeSkill(t, dir, "broken.yaml", "name: [unclosed\n")
	if err := reg.Reload(); !serrors.HasCode(err, serrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}

	// Previous snapshot still answers.
	if len(reg.Manifests()) != 1 {
		t.Errorf("previous snapshot lost: %v", reg.Manifests())
	}
	if _, err := reg.Tool("one"); err != nil {
		t.Errorf("previous snapshot tool lost: %v", err)
	}
}

func TestRegistryWarnings(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: svc\ndescription: service with no endpoint.\nruntime:\n  type: service\n")
	reg := newRegistry(t, dir)

	if len(reg.Warnings()["svc"]) != 1 {
		t.Errorf("expected endpoint warning, got %v", reg.Warnings())
	}
}

func TestRegistryImageGenSchemaOverride(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "img.yaml", "name: nano-banana-image-gen\ndescription: Generate images.\nruntime:\n  type: service\n  endpoint: http://ignored\n")
	reg := newRegistry(t, dir)

	tool, err := reg.Tool("nano-banana-image-gen")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(tool.Parameters(), &schema); err != nil {
		t.Fatalf("parameters not valid JSON: %v", err)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "prompt" {
		t.Errorf("expected prompt to be required, got %v", schema.Required)
	}
}

func TestToolInvokeRunsExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeSkill(t, dir, "s.yaml", "name: web-search\ndescription: Search the web.\nruntime:\n  type: service\n  endpoint: "+srv.URL+"\n")
	reg := newRegistry(t, dir)

	tool, err := reg.Tool("web_search")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	text, err := tool.Invoke(context.Background(), map[string]any{"query": "go"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if text != "ok" {
		t.Errorf("unexpected result: %q", text)
	}
}
