package colltask_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geopub/colltask"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestHashDirectoryStable(t *testing.T) {
	files := map[string]string{
		"a.csv":        "one",
		"sub/b.csv":    "two",
		"sub/deep/c":   "three",
		"zed/last.txt": "four",
	}

	dirA := t.TempDir()
	writeTree(t, dirA, files)
	dirB := t.TempDir()
	writeTree(t, dirB, files)

	hashA, err := colltask.HashDirectory(dirA)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	hashB, err := colltask.HashDirectory(dirB)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if hashA != hashB {
		t.Fatalf("identical trees hashed differently: %s vs %s", hashA, hashB)
	}
}

func TestHashDirectoryDetectsChanges(t *testing.T) {
	base := map[string]string{"a.csv": "one", "sub/b.csv": "two"}

	baseDir := t.TempDir()
	writeTree(t, baseDir, base)
	baseHash, err := colltask.HashDirectory(baseDir)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "changed content", files: map[string]string{"a.csv": "other", "sub/b.csv": "two"}},
		{name: "renamed file", files: map[string]string{"a2.csv": "one", "sub/b.csv": "two"}},
		{name: "extra file", files: map[string]string{"a.csv": "one", "sub/b.csv": "two", "c.csv": ""}},
		{name: "missing file", files: map[string]string{"a.csv": "one"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTree(t, dir, test.files)
			hash, err := colltask.HashDirectory(dir)
			if err != nil {
				t.Fatalf("hashing: %v", err)
			}
			if hash == baseHash {
				t.Fatal("expected a different hash")
			}
		})
	}
}

func TestHashDirectoryMissing(t *testing.T) {
	missingHash, err := colltask.HashDirectory(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("missing directory must not fail: %v", err)
	}

	emptyHash, err := colltask.HashDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("hashing empty directory: %v", err)
	}
	if missingHash != emptyHash {
		t.Fatalf("missing directory hash %s != empty directory hash %s", missingHash, emptyHash)
	}
}
