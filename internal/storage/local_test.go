package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	aerrors "github.com/annotab/annotab/internal/errors"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return storage
}

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	storage := newTestStorage(t)
	srcDir := t.TempDir()
	content := []byte("hello world")
	srcPath := writeTestFile(t, srcDir, "test.txt", content)

	ctx := context.Background()

	objectPath := "test/object.txt"
	if err := storage.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(srcDir, "nested", "downloaded.txt")
	if err := storage.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}

	// deleting twice is fine
	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_UploadMultipart(t *testing.T) {
	storage := newTestStorage(t)
	content := []byte("multipart test content")
	srcPath := writeTestFile(t, t.TempDir(), "test.txt", content)

	etag, err := storage.UploadMultipart(context.Background(), srcPath, "multipart/object.txt")
	if err != nil {
		t.Fatalf("UploadMultipart failed: %v", err)
	}

	sum := md5.Sum(content)
	if want := hex.EncodeToString(sum[:]); etag != want {
		t.Errorf("ETag mismatch: got %q, want %q", etag, want)
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	storage := newTestStorage(t)
	dstPath := filepath.Join(t.TempDir(), "downloaded.txt")

	err := storage.Download(context.Background(), "nonexistent/object.txt", dstPath)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if aerrors.IsRetryable(err) {
		t.Error("a missing object must not be retried")
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage := newTestStorage(t)
	srcPath := writeTestFile(t, t.TempDir(), "test.txt", []byte("test"))
	ctx := context.Background()

	for _, p := range []string{"db/a/db.yaml", "db/a/db.files.csv", "db/b/db.yaml"} {
		if err := storage.Upload(ctx, srcPath, p); err != nil {
			t.Fatalf("Upload failed for %s: %v", p, err)
		}
	}

	objects, err := storage.ListObjects(ctx, "db/a")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	sort.Strings(objects)
	want := []string{"db/a/db.files.csv", "db/a/db.yaml"}
	if len(objects) != len(want) {
		t.Fatalf("expected %v, got %v", want, objects)
	}
	for i := range want {
		if objects[i] != want[i] {
			t.Errorf("object %d: got %q, want %q", i, objects[i], want[i])
		}
	}

	objects, err = storage.ListObjects(ctx, "missing")
	if err != nil {
		t.Fatalf("ListObjects of a missing prefix failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected no objects, got %v", objects)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage := newTestStorage(t)
	srcPath := writeTestFile(t, t.TempDir(), "test.txt", []byte("test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := storage.Upload(ctx, srcPath, "obj.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatch_UploadDownload(t *testing.T) {
	storage := newTestStorage(t)
	srcDir := t.TempDir()
	names := []string{"obj1.txt", "obj2.txt", "obj3.txt", "obj4.txt", "obj5.txt"}
	for _, name := range names {
		writeTestFile(t, srcDir, name, []byte("content of "+name))
	}

	ctx := context.Background()
	batch := NewBatch(storage, 2)

	up := batch.Upload(ctx, srcDir, names, "prefix")
	if err := up.Err(); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(up.Transferred) != len(names) {
		t.Errorf("expected %d uploads, got %d", len(names), len(up.Transferred))
	}

	dstDir := t.TempDir()
	down := batch.Download(ctx, "prefix", append(names, "missing.txt"), dstDir)
	if len(down.Transferred) != len(names) {
		t.Errorf("expected %d downloads, got %d", len(names), len(down.Transferred))
	}
	if len(down.Errors) != 1 || !errors.Is(down.Errors["missing.txt"], ErrObjectNotFound) {
		t.Errorf("expected missing.txt to fail with ErrObjectNotFound, got %v", down.Errors)
	}
	if !errors.Is(down.Err(), ErrObjectNotFound) {
		t.Errorf("expected batch error to wrap ErrObjectNotFound, got %v", down.Err())
	}

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dstDir, name))
		if err != nil {
			t.Errorf("failed to read downloaded file %s: %v", name, err)
			continue
		}
		if string(b) != "content of "+name {
			t.Errorf("content mismatch for %s", name)
		}
	}
}

func TestBatch_EmptyRequest(t *testing.T) {
	batch := NewBatch(newTestStorage(t), 0)
	result := batch.Download(context.Background(), "prefix", nil, t.TempDir())
	if result.Err() != nil || len(result.Transferred) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
