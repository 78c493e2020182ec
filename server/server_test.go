package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/server/state"
	"github.com/indieinfra/pantry/storage/index"
	indexfactory "github.com/indieinfra/pantry/storage/index/factory"
)

type closeTrackingIndex struct {
	*index.MemoryIndex
	closed bool
}

func (c *closeTrackingIndex) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.Server{
			Address: "127.0.0.1",
			Port:    0,
			Limits:  config.ServerLimits{MaxFileSize: 1 << 20, MaxMultipartMem: 1 << 20},
		},
		Media: config.Media{
			Local:  config.LocalMediaStrategy{Path: t.TempDir(), PublicUrl: "https://example.com/uploads/", Serve: true},
			Remote: config.RemoteMedia{Strategy: "noop"},
		},
		Index: config.Index{Strategy: "memory"},
	}
}

func TestInitializeIndex_UsesRegisteredFactory(t *testing.T) {
	tracked := &closeTrackingIndex{MemoryIndex: index.NewMemoryIndex()}
	indexfactory.Register("stub-index", func(cfg *config.Index) (index.Index, error) {
		return tracked, nil
	})

	idx, err := initializeIndex(&config.Index{Strategy: "stub-index"})
	if err != nil {
		t.Fatalf("expected index, got error %v", err)
	}
	if idx != tracked {
		t.Fatalf("unexpected index %T", idx)
	}
}

func TestInitializeIndex_Error(t *testing.T) {
	indexfactory.Register("error-index", func(cfg *config.Index) (index.Index, error) {
		return nil, errors.New("failed")
	})

	if _, err := initializeIndex(&config.Index{Strategy: "error-index"}); err == nil {
		t.Fatalf("expected error for failing factory")
	}
}

func TestNewState_ClosesIndexWhenRemoteFails(t *testing.T) {
	tracked := &closeTrackingIndex{MemoryIndex: index.NewMemoryIndex()}
	indexfactory.Register("tracked-index", func(cfg *config.Index) (index.Index, error) {
		return tracked, nil
	})

	cfg := testConfig(t)
	cfg.Index.Strategy = "tracked-index"
	cfg.Media.Remote.Strategy = "unknown"

	if _, err := NewState(cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected unknown remote strategy to fail")
	}
	if !tracked.closed {
		t.Fatalf("expected index to be closed after failed initialization")
	}
}

func TestCleanupToleratesEmptyState(t *testing.T) {
	Cleanup(nil)
	Cleanup(&state.PantryState{})
}

func TestLocalMountPath(t *testing.T) {
	cases := map[string]struct {
		prefix string
		ok     bool
	}{
		"https://example.com/uploads/": {"/uploads/", true},
		"/static/media":                {"/static/media/", true},
		"https://cdn.example.com":      {"", false},
		"/":                            {"", false},
		"/media":                       {"", false},
		"/media/files":                 {"", false},
	}

	for in, want := range cases {
		prefix, ok := localMountPath(in)
		if prefix != want.prefix || ok != want.ok {
			t.Fatalf("localMountPath(%q) = %q, %v; want %q, %v", in, prefix, ok, want.prefix, want.ok)
		}
	}
}

func TestNewHandler_Routes(t *testing.T) {
	cfg := testConfig(t)
	st, err := NewState(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(func() { Cleanup(st) })

	if err := os.WriteFile(filepath.Join(cfg.Media.Local.Path, "menu.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	seeded := &asset.MediaAsset{
		ID:        "local-menu.jpg",
		URL:       "https://example.com/uploads/menu.jpg",
		Source:    asset.SourceLocal,
		Type:      asset.KindImage,
		Name:      "menu.jpg",
		Size:      4,
		Tags:      []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := st.Index.Insert(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewHandler(st)
	cases := []struct {
		method, target string
		code           int
		contains       string
	}{
		{http.MethodGet, "/media", http.StatusOK, `"local-menu.jpg"`},
		{http.MethodGet, "/media/reconcile", http.StatusOK, `"orphanedFiles":[]`},
		{http.MethodGet, "/media/local-menu.jpg", http.StatusOK, `"name":"menu.jpg"`},
		{http.MethodGet, "/media/remote-2026%2F10%2Fmissing.jpg", http.StatusNotFound, `"not_found"`},
		{http.MethodGet, "/media/local:menu.jpg", http.StatusBadRequest, `"invalid_request"`},
		{http.MethodGet, "/uploads/menu.jpg", http.StatusOK, "jpeg"},
		{http.MethodGet, "/uploads/", http.StatusNotFound, ""},
		{http.MethodPut, "/media", http.StatusMethodNotAllowed, ""},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.target, nil))

			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rr.Code, rr.Body.String())
			}
			if tc.contains != "" && !strings.Contains(rr.Body.String(), tc.contains) {
				t.Fatalf("expected body to contain %s, got %s", tc.contains, rr.Body.String())
			}
		})
	}
}

func TestNewHandler_AdminGate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Auth.Secret = "0123456789abcdef0123456789abcdef"

	st, err := NewState(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(func() { Cleanup(st) })

	if err := os.WriteFile(filepath.Join(cfg.Media.Local.Path, "menu.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	h := NewHandler(st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads/menu.jpg", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected public file to be served, got %d", rr.Code)
	}
}

func TestStartServer_FailsWhenInitializationFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Strategy = "unknown"

	if err := StartServer(cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected StartServer to fail for unknown strategy")
	}
}

func TestStartServer_ShutsDownOnSignal(t *testing.T) {
	tracked := &closeTrackingIndex{MemoryIndex: index.NewMemoryIndex()}
	indexfactory.Register("stub-start", func(cfg *config.Index) (index.Index, error) {
		return tracked, nil
	})

	cfg := testConfig(t)
	cfg.Index.Strategy = "stub-start"

	done := make(chan struct{})
	go func() {
		if err := StartServer(cfg, zap.NewNop()); err != nil {
			t.Errorf("StartServer returned error: %v", err)
		}
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	proc, _ := os.FindProcess(os.Getpid())
	_ = proc.Signal(syscall.SIGINT)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not shut down after signal")
	}

	if !tracked.closed {
		t.Fatalf("expected index to be closed on shutdown")
	}
}
