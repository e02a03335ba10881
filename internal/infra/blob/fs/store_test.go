package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	key := "attachments/sample/s-1/plate.png/1"
	info, err := store.Put(ctx, key, strings.NewReader("pixels"), core.PutOptions{ContentType: "image/png", Metadata: map[string]string{"file_name": "plate.png"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 6 || len(info.Checksum) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, key, strings.NewReader("other"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(data) != "pixels" {
		t.Fatalf("unexpected content %q", data)
	}
	if diff := cmp.Diff(info, got); diff != "" {
		t.Fatalf("head mismatch (-put +get):\n%s", diff)
	}

	u, err := store.PresignURL(ctx, key, core.SignedURLOptions{})
	if err != nil || !strings.HasPrefix(u, "file://") {
		t.Fatalf("unexpected url %q, %v", u, err)
	}
	if _, err := store.PresignURL(ctx, key, core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	if ok, err := store.Delete(ctx, key); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := store.Delete(ctx, key); ok {
		t.Fatalf("second delete must report missing blob")
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"exports/b.tsv", "exports/a.tsv", "attachments/project/p/x/1"} {
		if _, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range list {
		keys = append(keys, info.Key)
	}
	if diff := cmp.Diff([]string{"exports/a.tsv", "exports/b.tsv"}, keys); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected all blobs, got %d", len(all))
	}
}

func TestStoreKeysStayBelowRoot(t *testing.T) {
	store := newTempStore(t)
	for _, key := range []string{"../escape", "/etc/passwd", "a/./b", ""} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(store.Root()))
	if err != nil {
		t.Fatalf("read parent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("nothing may be written next to the root, found %d entries", len(entries))
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Base(store.Root()) != "blobdata" {
		t.Fatalf("unexpected default root %s", store.Root())
	}
}
