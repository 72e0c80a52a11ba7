package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	pkgsource "github.com/goliatone/go-formstate/pkg/source"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.json")
	if err := os.WriteFile(path, []byte(`{"name":"Bruce"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := New(pkgsource.NewLoaderOptions()).Load(context.Background(), pkgsource.FromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"name":"Bruce"}` {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestLoadFS(t *testing.T) {
	files := fstest.MapFS{"forms/login.yaml": {Data: []byte("name: login\n")}}
	loader := New(pkgsource.NewLoaderOptions(pkgsource.WithFileSystem(files)))

	data, err := loader.Load(context.Background(), pkgsource.FromFS("forms/login.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != "name: login\n" {
		t.Fatalf("unexpected data %q", data)
	}

	if _, err := New(pkgsource.NewLoaderOptions()).Load(context.Background(), pkgsource.FromFS("x")); err == nil {
		t.Fatalf("expected error without filesystem")
	}
}

func TestLoadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"email":"Sincere@april.biz"}`))
	}))
	defer server.Close()

	disabled := New(pkgsource.NewLoaderOptions())
	if _, err := disabled.Load(context.Background(), pkgsource.FromURL(server.URL)); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected http disabled error, got %v", err)
	}

	loader := New(pkgsource.NewLoaderOptions(pkgsource.WithHTTPClient(server.Client()), pkgsource.WithHTTPFallback(time.Second)))
	data, err := loader.Load(context.Background(), pkgsource.FromURL(server.URL+"/users/1"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(string(data), "Sincere@april.biz") {
		t.Fatalf("unexpected body %q", data)
	}

	if _, err := loader.Load(context.Background(), pkgsource.FromURL(server.URL+"/missing")); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestResolveLocation(t *testing.T) {
	src, err := pkgsource.Resolve("https://example.com/form.yaml")
	if err != nil || src.Kind() != pkgsource.KindURL {
		t.Fatalf("expected url source, got %v %v", src, err)
	}
	src, err = pkgsource.Resolve("./forms/login.yaml")
	if err != nil || src.Kind() != pkgsource.KindFile || src.Location() != "forms/login.yaml" {
		t.Fatalf("expected file source, got %v %v", src, err)
	}
}
