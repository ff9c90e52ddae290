package render

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDigestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")

	path, err := WriteDigestFile("# 다이제스트\n본문", dir, "2026-02-07")
	if err != nil {
		t.Fatalf("WriteDigestFile: %v", err)
	}

	if filepath.Base(path) != "2026-02-07_digest.md" {
		t.Errorf("filename = %s, want 2026-02-07_digest.md", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(data) != "# 다이제스트\n본문" {
		t.Errorf("content round-trip mismatch: %q", data)
	}
}

func TestWriteDigestFile_Overwrites(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteDigestFile("첫번째", dir, "2026-02-07"); err != nil {
		t.Fatal(err)
	}
	path, err := WriteDigestFile("두번째", dir, "2026-02-07")
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "두번째" {
		t.Errorf("rerun should overwrite, got %q", data)
	}
}
