package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	src := writeTempFile(t, "partition bytes")
	if err := store.Upload(ctx, src, "date=2026-03-15/events_abc.sqlite"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.sqlite")
	if err := store.Download(ctx, "date=2026-03-15/events_abc.sqlite", dest); err != nil {
		t.Fatalf("download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded: %v", err)
	}
	if string(got) != "partition bytes" {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestLocalDownloadMissingObject(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}

	err = store.Download(context.Background(), "nope", filepath.Join(t.TempDir(), "out"))
	if err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalExists(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	ok, err := store.Exists(ctx, "missing")
	if err != nil || ok {
		t.Errorf("missing object: ok=%v err=%v", ok, err)
	}

	src := writeTempFile(t, "x")
	if err := store.Upload(ctx, src, "present"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	ok, err = store.Exists(ctx, "present")
	if err != nil || !ok {
		t.Errorf("present object: ok=%v err=%v", ok, err)
	}
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting a missing object should succeed: %v", err)
	}

	src := writeTempFile(t, "x")
	if err := store.Upload(ctx, src, "obj"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := store.Delete(ctx, "obj"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ := store.Exists(ctx, "obj")
	if ok {
		t.Error("object still exists after delete")
	}
}

func TestLocalListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	src := writeTempFile(t, "x")
	for _, key := range []string{
		"run1/date=2026-03-15/events_a.sqlite",
		"run1/date=2026-03-16/events_b.sqlite",
		"run2/date=2026-03-15/events_c.sqlite",
	} {
		if err := store.Upload(ctx, src, key); err != nil {
			t.Fatalf("upload %s: %v", key, err)
		}
	}

	objects, err := store.ListObjects(ctx, "run1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("expected 2 objects under run1, got %d: %v", len(objects), objects)
	}

	objects, err = store.ListObjects(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("list missing prefix: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected empty list for missing prefix, got %v", objects)
	}
}
