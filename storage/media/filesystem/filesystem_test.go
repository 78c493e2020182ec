package filesystem

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewFilesystemMediaStore(&config.LocalMediaStrategy{
		Path:      dir,
		PublicUrl: "https://example.com/uploads",
	}, "https://example.com/static/video.png")
	if err != nil {
		t.Fatalf("NewFilesystemMediaStore: %v", err)
	}

	return store, dir
}

func TestNew_CreatesDirectory(t *testing.T) {
	_, dir := setupStore(t)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat upload dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := NewFilesystemMediaStore(nil, ""); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestStore_Image(t *testing.T) {
	store, dir := setupStore(t)
	data := pngBytes(t, 8, 5)

	obj, err := store.Store(context.Background(), data, "Tacos.PNG", "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !strings.HasSuffix(obj.NativeKey, ".png") {
		t.Fatalf("expected lower-cased extension to be kept, got %q", obj.NativeKey)
	}
	if obj.URL != "https://example.com/uploads/"+obj.NativeKey {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	if obj.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), obj.Size)
	}
	if obj.Thumbnail == nil || *obj.Thumbnail != obj.URL {
		t.Fatalf("expected image thumbnail to equal url, got %v", obj.Thumbnail)
	}
	if obj.Dimensions == nil || obj.Dimensions.Width != 8 || obj.Dimensions.Height != 5 {
		t.Fatalf("unexpected dimensions %+v", obj.Dimensions)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, obj.NativeKey))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Fatalf("stored bytes differ from upload")
	}
}

func TestStore_VideoUsesPlaceholder(t *testing.T) {
	store, _ := setupStore(t)

	obj, err := store.Store(context.Background(), []byte("not really a video"), "tour.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if obj.Thumbnail == nil || *obj.Thumbnail != "https://example.com/static/video.png" {
		t.Fatalf("expected placeholder thumbnail, got %v", obj.Thumbnail)
	}
	if obj.Dimensions != nil {
		t.Fatalf("expected no dimensions for video, got %+v", obj.Dimensions)
	}
}

func TestStore_ExtensionFromMIME(t *testing.T) {
	store, _ := setupStore(t)

	obj, err := store.Store(context.Background(), pngBytes(t, 1, 1), "blob", "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if filepath.Ext(obj.NativeKey) != ".png" {
		t.Fatalf("expected .png extension, got %q", obj.NativeKey)
	}
}

func TestStore_DistinctKeys(t *testing.T) {
	store, _ := setupStore(t)

	a, err := store.Store(context.Background(), []byte("a"), "same.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store a: %v", err)
	}
	b, err := store.Store(context.Background(), []byte("b"), "same.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store b: %v", err)
	}

	if a.NativeKey == b.NativeKey {
		t.Fatalf("expected distinct keys for same original name, got %q twice", a.NativeKey)
	}
}

func TestStore_RetriesOnCollision(t *testing.T) {
	store, dir := setupStore(t)

	if err := os.WriteFile(filepath.Join(dir, "taken.jpg"), []byte("old"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tokens := []string{"taken", "fresh"}
	store.newToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}

	obj, err := store.Store(context.Background(), []byte("new"), "x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if obj.NativeKey != "fresh.jpg" {
		t.Fatalf("expected collision to be skipped, got %q", obj.NativeKey)
	}

	old, _ := os.ReadFile(filepath.Join(dir, "taken.jpg"))
	if string(old) != "old" {
		t.Fatalf("existing file was overwritten")
	}
}

func TestStore_NameTakenAfterTokenIsNotOverwritten(t *testing.T) {
	store, dir := setupStore(t)

	tokens := []string{"racing", "fresh"}
	store.newToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		if tok == "racing" {
			if err := os.WriteFile(filepath.Join(dir, "racing.jpg"), []byte("theirs"), 0644); err != nil {
				t.Fatalf("seed racing file: %v", err)
			}
		}
		return tok
	}

	obj, err := store.Store(context.Background(), []byte("ours"), "x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if obj.NativeKey != "fresh.jpg" {
		t.Fatalf("expected a fresh name, got %q", obj.NativeKey)
	}

	theirs, _ := os.ReadFile(filepath.Join(dir, "racing.jpg"))
	if string(theirs) != "theirs" {
		t.Fatalf("file created by another writer was overwritten: %q", theirs)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("expected two files and no temp leftovers, got %d entries", len(entries))
	}
}

func TestStore_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store, dir := setupStore(t)

	if err := os.WriteFile(filepath.Join(dir, "taken.jpg"), []byte("old"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	store.newToken = func() string { return "taken" }

	_, err := store.Store(context.Background(), []byte("new"), "x.jpg", "image/jpeg")
	if !errors.Is(err, asset.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}

	keys, err := store.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "taken.jpg" {
		t.Fatalf("expected temp file to be cleaned up, got %v", keys)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the seeded file on disk, got %d entries", len(entries))
	}
}

func TestStore_CancelledContext(t *testing.T) {
	store, dir := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Store(ctx, []byte("x"), "x.jpg", "image/jpeg")
	if !errors.Is(err, asset.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, got %d entries", len(entries))
	}
}

func TestStore_MissingDirectory(t *testing.T) {
	store, dir := setupStore(t)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	_, err := store.Store(context.Background(), []byte("x"), "x.jpg", "image/jpeg")
	if !errors.Is(err, asset.ErrUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	store, dir := setupStore(t)

	obj, err := store.Store(context.Background(), []byte("x"), "x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := store.Delete(context.Background(), obj.NativeKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, obj.NativeKey)); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err=%v", err)
	}

	if err := store.Delete(context.Background(), obj.NativeKey); err != nil {
		t.Fatalf("second Delete should succeed, got %v", err)
	}
}

func TestDelete_RejectsUnsafeKeys(t *testing.T) {
	store, _ := setupStore(t)

	for _, key := range []string{"", "../etc/passwd", "nested/file.jpg", ".hidden", `..\x.jpg`} {
		if err := store.Delete(context.Background(), key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestKeys_SkipsDirsDotfilesAndTemps(t *testing.T) {
	store, dir := setupStore(t)

	for _, name := range []string{"b.jpg", "a.png", ".DS_Store", tempPrefix + "123"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	keys, err := store.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}

	if len(keys) != 2 || keys[0] != "a.png" || keys[1] != "b.jpg" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestPathAndURL(t *testing.T) {
	store, dir := setupStore(t)

	if got := store.Path("a.jpg"); got != filepath.Join(dir, "a.jpg") {
		t.Fatalf("unexpected path %q", got)
	}
	if got := store.URL("a.jpg"); got != "https://example.com/uploads/a.jpg" {
		t.Fatalf("unexpected url %q", got)
	}
}
