package resource

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestExpandGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "libx.so.1"), "one")
	writeFile(t, filepath.Join(dir, "libx.so.2"), "two")
	writeFile(t, filepath.Join(dir, "unrelated.txt"), "no")

	set := New("libx", []string{filepath.Join(dir, "libx.so.*")})
	paths, err := set.Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("Expected 2 paths, got %d: %v", len(paths), paths)
	}
	if paths[0] != filepath.Join(dir, "libx.so.1") {
		t.Errorf("Expected sorted output, got %v", paths)
	}
}

func TestExpandLiteralMissingPath(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.so")

	set := New("libx", []string{missing})
	paths, err := set.Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(paths) != 1 || paths[0] != missing {
		t.Errorf("Expected missing literal path to be included, got %v", paths)
	}
}

func TestExpandGlobNoMatches(t *testing.T) {
	dir := t.TempDir()

	set := New("libx", []string{filepath.Join(dir, "nothing-*.so")})
	paths, err := set.Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("Expected no paths for unmatched glob, got %v", paths)
	}
}

func TestExpandDirectoryWalk(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "quirks")
	writeFile(t, filepath.Join(sub, "a.quirks"), "a")
	writeFile(t, filepath.Join(sub, "nested", "b.quirks"), "b")

	set := New("quirks", []string{sub})
	paths, err := set.Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("Expected 2 files from directory walk, got %v", paths)
	}
}

func TestExpandDeduplicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "libx.so")
	writeFile(t, file, "x")

	set := New("libx", []string{file, filepath.Join(dir, "libx.*")})
	paths, err := set.Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("Expected deduplicated output, got %v", paths)
	}
}

func TestExpandRejectsRelativePattern(t *testing.T) {
	set := New("libx", []string{"relative/path.so"})
	if _, err := set.Expand(); err == nil {
		t.Error("Expected error for relative pattern, got nil")
	}
}

func TestExpandRejectsEmptyPattern(t *testing.T) {
	set := New("libx", []string{""})
	if _, err := set.Expand(); err == nil {
		t.Error("Expected error for empty pattern, got nil")
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "libx.so")
	missing := filepath.Join(dir, "gone.so")
	writeFile(t, file, "contents")

	set := New("libx", []string{file, missing})
	fp, err := set.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if fp[missing] != AbsentDigest {
		t.Errorf("Expected absent digest for missing path, got %q", fp[missing])
	}
	if fp[file] == AbsentDigest || fp[file] == "" {
		t.Errorf("Expected content digest for existing file, got %q", fp[file])
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "libx.so")
	writeFile(t, file, "before")

	set := New("libx", []string{file})
	before, err := set.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	writeFile(t, file, "after")
	after, err := set.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if before[file] == after[file] {
		t.Error("Expected digest to change when content changes")
	}
}

func TestDigestFileMissing(t *testing.T) {
	digest, err := DigestFile(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if digest != AbsentDigest {
		t.Errorf("Expected %q, got %q", AbsentDigest, digest)
	}
}
