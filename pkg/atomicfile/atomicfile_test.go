package atomicfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteFile_ReplacesContent(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "manifest.json")

	if err := WriteFile(targetPath, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(targetPath, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("got %q, want %q", data, "second")
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("got mode %v, want 0644", info.Mode().Perm())
	}
}

func TestWriteFile_LeavesNoTemporaryFiles(t *testing.T) {
	directory := t.TempDir()
	targetPath := filepath.Join(directory, "chapter-1.json")

	var waitGroup sync.WaitGroup
	for writer := 0; writer < 8; writer++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if err := WriteFile(targetPath, []byte("content"), 0o644); err != nil {
				t.Errorf("WriteFile failed: %v", err)
			}
		}()
	}
	waitGroup.Wait()

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "chapter-1.json" {
		t.Errorf("expected only the target file, got %v", entries)
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "absent", "index.json")

	if err := WriteFile(targetPath, []byte("{}"), 0o644); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
