package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ZeoXel/skillslike/pkg/artifact"
	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

func TestAppendAndExtractFileIDs(t *testing.T) {
	text := AppendFileID("done", "abc-123")
	if text != "done\nfile_id: abc-123" {
		t.Errorf("unexpected text: %q", text)
	}
	if got := AppendFileID("done", ""); got != "done" {
		t.Errorf("empty id should be a no-op, got %q", got)
	}

	text = AppendFileID(text, "def-456")
	ids := ExtractFileIDs(text)
	if !reflect.DeepEqual(ids, []string{"abc-123", "def-456"}) {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestExtractFileIDsEdgeCases(t *testing.T) {
	if ids := ExtractFileIDs("no markers here"); ids != nil {
		t.Errorf("expected no ids, got %v", ids)
	}
	// Repeated id is reported each time; deduplication is the caller's job.
	ids := ExtractFileIDs("file_id: x trailing file_id: x")
	if !reflect.DeepEqual(ids, []string{"x", "x"}) {
		t.Errorf("unexpected ids: %v", ids)
	}
	// Marker with nothing after it yields nothing.
	if ids := ExtractFileIDs("result file_id: "); ids != nil {
		t.Errorf("expected no ids, got %v", ids)
	}
	// An inline marker reads up to the next whitespace.
	ids = ExtractFileIDs("saved as file_id: report-1 see above")
	if !reflect.DeepEqual(ids, []string{"report-1"}) {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func serviceManifest(endpoint string, timeoutSeconds int) manifest.SkillManifest {
	return manifest.SkillManifest{
		Name:        "web-search",
		Description: "Search the web.",
		Runtime: manifest.RuntimeConfig{
			Type:     manifest.RuntimeService,
			Endpoint: endpoint,
			Timeout:  timeoutSeconds,
		},
	}
}

func TestServiceExecutorJSONResponse(t *testing.T) {
	var gotArgs map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotArgs)
		json.NewEncoder(w).Encode(map[string]string{"text": "3 results found", "file_id": "res-1"})
	}))
	defer srv.Close()

	exec := &serviceExecutor{manifest: serviceManifest(srv.URL, 30)}
	text, err := exec.Execute(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if text != "3 results found\nfile_id: res-1" {
		t.Errorf("unexpected text: %q", text)
	}
	if gotArgs["query"] != "golang" {
		t.Errorf("arguments not forwarded: %v", gotArgs)
	}
}

func TestServiceExecutorPlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain answer\n"))
	}))
	defer srv.Close()

	exec := &serviceExecutor{manifest: serviceManifest(srv.URL, 30)}
	text, err := exec.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if text != "plain answer" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestServiceExecutorBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec := &serviceExecutor{manifest: serviceManifest(srv.URL, 30)}
	_, err := exec.Execute(context.Background(), nil)
	if !serrors.HasCode(err, serrors.CodeToolFailure) {
		t.Fatalf("expected tool failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "web-search") {
		t.Errorf("error should name the skill: %v", err)
	}
}

func TestServiceExecutorMissingEndpoint(t *testing.T) {
	exec := &serviceExecutor{manifest: serviceManifest("", 30)}
	if _, err := exec.Execute(context.Background(), nil); !serrors.HasCode(err, serrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestServiceExecutorTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	exec := &serviceExecutor{manifest: serviceManifest(srv.URL, 1)}
	start := time.Now()
	_, err := exec.Execute(context.Background(), nil)
	if !serrors.HasCode(err, serrors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if !strings.Contains(err.Error(), "web-search") || !strings.Contains(err.Error(), "1s") {
		t.Errorf("timeout should name skill and bound: %v", err)
	}
}

type fakeInvoker struct {
	text   string
	fileID string
	err    error
	gotID  string
}

func (f *fakeInvoker) InvokeSkill(_ context.Context, skillID string, _ map[string]any) (string, string, error) {
	f.gotID = skillID
	return f.text, f.fileID, f.err
}

func TestVendorExecutor(t *testing.T) {
	inv := &fakeInvoker{text: "report ready", fileID: "xls-9"}
	exec := &vendorExecutor{
		manifest: manifest.SkillManifest{
			Name:        "excel-skill",
			Description: "Excel processing.",
			Runtime:     manifest.RuntimeConfig{Type: manifest.RuntimeAnthropic, SkillID: "excel-v1", Timeout: 30},
		},
		invoker: inv,
	}

	text, err := exec.Execute(context.Background(), map[string]any{"task": "sum column A"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if inv.gotID != "excel-v1" {
		t.Errorf("wrong skill id: %s", inv.gotID)
	}
	if text != "report ready\nfile_id: xls-9" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestVendorExecutorMissingSkillID(t *testing.T) {
	exec := &vendorExecutor{
		manifest: manifest.SkillManifest{
			Name:    "excel-skill",
			Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeAnthropic},
		},
		invoker: &fakeInvoker{},
	}
	if _, err := exec.Execute(context.Background(), nil); !serrors.HasCode(err, serrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func newArtifactStore(t *testing.T) artifact.Store {
	t.Helper()
	store, err := artifact.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func outDirFromArgs(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "-v" && i+1 < len(args) {
			return strings.SplitN(args[i+1], ":", 2)[0]
		}
	}
	t.Fatal("no volume mount in docker args")
	return ""
}

func TestContainerExecutorUploadsOutputs(t *testing.T) {
	store := newArtifactStore(t)
	exec := &containerExecutor{
		manifest: manifest.SkillManifest{
			Name:        "chart-maker",
			Description: "Render charts.",
			Runtime:     manifest.RuntimeConfig{Type: manifest.RuntimeDocker, Image: "charts:latest", Timeout: 30},
		},
		store: store,
		runCommand: func(_ context.Context, name string, args []string, stdin []byte) ([]byte, error) {
			if name != "docker" || args[0] != "run" {
				t.Errorf("unexpected command: %s %v", name, args)
			}
			var parsed map[string]any
			if err := json.Unmarshal(stdin, &parsed); err != nil {
				t.Errorf("stdin is not the JSON arguments: %v", err)
			}
			dir := outDirFromArgs(t, args)
			writeFile(t, dir, "chart.png", []byte{0x89, 0x50})
			return []byte("chart rendered\n"), nil
		},
	}

	text, err := exec.Execute(context.Background(), map[string]any{"series": "a"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	ids := ExtractFileIDs(text)
	if len(ids) != 1 {
		t.Fatalf("expected one artifact id, got %v", ids)
	}
	if !strings.HasPrefix(text, "chart rendered") {
		t.Errorf("unexpected text: %q", text)
	}
	data, err := store.Get(context.Background(), ids[0])
	if err != nil || len(data) != 2 {
		t.Errorf("artifact not stored: %v %v", data, err)
	}
}

func TestContainerExecutorTimeout(t *testing.T) {
	exec := &containerExecutor{
		manifest: manifest.SkillManifest{
			Name:    "slow-skill",
			Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeDocker, Image: "slow:latest", Timeout: 1},
		},
		store: newArtifactStore(t),
		runCommand: func(ctx context.Context, _ string, _ []string, _ []byte) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	_, err := exec.Execute(context.Background(), nil)
	if !serrors.HasCode(err, serrors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "slow-skill") {
		t.Errorf("timeout should name the skill: %v", err)
	}
}

func TestContainerExecutorMissingImage(t *testing.T) {
	exec := &containerExecutor{
		manifest: manifest.SkillManifest{
			Name:    "no-image",
			Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeDocker},
		},
	}
	if _, err := exec.Execute(context.Background(), nil); !serrors.HasCode(err, serrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestImageGenExecutorURLMode(t *testing.T) {
	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	var imageURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/images/generations":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["model"] != DefaultImageGenModel || req["prompt"] != "a red fox" {
				t.Errorf("unexpected request: %v", req)
			}
			if req["aspect_ratio"] != "1:1" || req["image_size"] != "4K" {
				t.Errorf("defaults not applied: %v", req)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"url": imageURL}},
			})
		case "/img.png":
			w.Write(imageBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	imageURL = srv.URL + "/img.png"

	store := newArtifactStore(t)
	exec := &imageGenExecutor{
		client: NewImageGenClient(srv.URL+"/v1/images/generations", "key", ""),
		store:  store,
		skill:  "nano-banana-image-gen",
	}

	text, err := exec.Execute(context.Background(), map[string]any{"prompt": "a red fox"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	ids := ExtractFileIDs(text)
	if len(ids) != 1 || ids[0] == SentinelDownloadFailed || ids[0] == SentinelStorageFailed {
		t.Fatalf("expected stored artifact id, got %v", ids)
	}
	if !strings.Contains(text, imageURL) {
		t.Errorf("result should carry the source url: %q", text)
	}
	if data, err := store.Get(context.Background(), ids[0]); err != nil || len(data) != len(imageBytes) {
		t.Errorf("image not persisted: %v %v", data, err)
	}
}

func TestImageGenExecutorB64Mode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("png-bytes"))}},
		})
	}))
	defer srv.Close()

	store := newArtifactStore(t)
	exec := &imageGenExecutor{client: NewImageGenClient(srv.URL, "", ""), store: store, skill: "img"}

	text, err := exec.Execute(context.Background(), map[string]any{"prompt": "x"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	ids := ExtractFileIDs(text)
	if len(ids) != 1 {
		t.Fatalf("expected one id, got %v", ids)
	}
	if data, _ := store.Get(context.Background(), ids[0]); string(data) != "png-bytes" {
		t.Errorf("decoded payload not stored: %q", data)
	}
}

func TestImageGenExecutorDownloadFailureSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gen" {
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"url": "http://127.0.0.1:1/missing.png"}},
			})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	exec := &imageGenExecutor{
		client: NewImageGenClient(srv.URL+"/gen", "", ""),
		store:  newArtifactStore(t),
		skill:  "img",
	}
	text, err := exec.Execute(context.Background(), map[string]any{"prompt": "x"})
	if err != nil {
		t.Fatalf("sentinel path should not error: %v", err)
	}
	ids := ExtractFileIDs(text)
	if len(ids) != 1 || ids[0] != SentinelDownloadFailed {
		t.Errorf("expected download-failed sentinel, got %v", ids)
	}
}

func TestImageGenExecutorRequiresPrompt(t *testing.T) {
	exec := &imageGenExecutor{client: NewImageGenClient("http://x", "", ""), store: newArtifactStore(t), skill: "img"}
	if _, err := exec.Execute(context.Background(), map[string]any{}); !serrors.HasCode(err, serrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestForManifestDispatch(t *testing.T) {
	deps := Deps{
		Artifacts:     newArtifactStore(t),
		Skills:        &fakeInvoker{},
		Images:        NewImageGenClient("http://x", "", ""),
		ImageGenSkill: "nano-banana-image-gen",
	}

	cases := []struct {
		manifest manifest.SkillManifest
		want     string
	}{
		{manifest.SkillManifest{Name: "a", Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeDocker, Image: "i"}}, "*executor.containerExecutor"},
		{manifest.SkillManifest{Name: "b", Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeService, Endpoint: "e"}}, "*executor.serviceExecutor"},
		{manifest.SkillManifest{Name: "c", Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeAnthropic, SkillID: "s"}}, "*executor.vendorExecutor"},
		// Name match wins over the declared runtime kind.
		{manifest.SkillManifest{Name: "nano-banana-image-gen", Runtime: manifest.RuntimeConfig{Type: manifest.RuntimeService}}, "*executor.imageGenExecutor"},
	}
	for _, tc := range cases {
		exec, err := ForManifest(tc.manifest, deps)
		if err != nil {
			t.Fatalf("%s: %v", tc.manifest.Name, err)
		}
		if got := reflect.TypeOf(exec).String(); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.manifest.Name, got, tc.want)
		}
	}

	if _, err := ForManifest(manifest.SkillManifest{Name: "bad", Runtime: manifest.RuntimeConfig{Type: "lambda"}}, deps); !serrors.HasCode(err, serrors.CodeConfig) {
		t.Errorf("expected config error for unknown runtime, got %v", err)
	}
}
