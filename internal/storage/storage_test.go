package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateFile(t *testing.T) {
	if err := ValidateFile("report.pdf", 1024, "application/pdf", 0); err != nil {
		t.Fatalf("valid file rejected: %v", err)
	}
	if err := ValidateFile("big.pdf", MaxFileSize+1, "application/pdf", 0); err == nil {
		t.Fatalf("oversized file accepted")
	}
	if err := ValidateFile("ok.pdf", MaxFileSize, "application/pdf", 0); err != nil {
		t.Fatalf("file at the limit rejected: %v", err)
	}
	if err := ValidateFile("payload.exe", 10, "application/octet-stream", 0); err == nil {
		t.Fatalf("disallowed type accepted")
	}
	for _, ct := range []string{"image/png", "image/webp", "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"} {
		if err := ValidateFile("f", 10, ct, 0); err != nil {
			t.Fatalf("allowed type %s rejected: %v", ct, err)
		}
	}
}

func TestValidateFileCustomCeiling(t *testing.T) {
	limit := int64(1024 * 1024)
	if err := ValidateFile("small.pdf", limit, "application/pdf", limit); err != nil {
		t.Fatalf("file at the configured limit rejected: %v", err)
	}
	if err := ValidateFile("big.pdf", limit+1, "application/pdf", limit); err == nil {
		t.Fatalf("file over the configured limit accepted")
	}
	// A ceiling above the default is honored too.
	if err := ValidateFile("huge.pdf", MaxFileSize*2, "application/pdf", MaxFileSize*4); err != nil {
		t.Fatalf("raised ceiling not honored: %v", err)
	}
}

func TestEvidencePath(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	got := EvidencePath(3, 7, now, "pen test (final).pdf")
	want := "3/7/1787832000000_pen_test__final_.pdf"
	if got != want {
		t.Fatalf("EvidencePath = %q, want %q", got, want)
	}
	// Path traversal attempts are reduced to their base name.
	got = EvidencePath(3, 7, now, "../../etc/passwd")
	if got != "3/7/1787832000000_passwd" {
		t.Fatalf("traversal not sanitized: %q", got)
	}
}

func TestThumbnailPath(t *testing.T) {
	if got := ThumbnailPath("3/7/17_diagram.png"); got != "3/7/17_diagram_thumb.jpg" {
		t.Fatalf("ThumbnailPath = %q", got)
	}
}

func TestDiskStoreUploadDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, "/files")
	ctx := context.Background()

	info, err := store.Upload(ctx, "1/2/3_a.txt", []byte("hello"), "text/plain")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if info.Size != 5 || info.URL != "/files/1/2/3_a.txt" {
		t.Fatalf("unexpected info %+v", info)
	}
	data, err := os.ReadFile(filepath.Join(dir, "1", "2", "3_a.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("stored content wrong: %q %v", data, err)
	}

	if _, err := store.Upload(ctx, "1/2/3_a.txt", []byte("again"), "text/plain"); err == nil {
		t.Fatalf("overwrite accepted")
	}

	if err := store.Delete(ctx, "1/2/3_a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1", "2", "3_a.txt")); !os.IsNotExist(err) {
		t.Fatalf("file still present after delete")
	}
	// deleting a missing file is not an error
	if err := store.Delete(ctx, "1/2/gone.txt"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
