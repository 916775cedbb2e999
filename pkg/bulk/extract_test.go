package bulk

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

func buildZIP(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buffer bytes.Buffer
	zipWriter := zip.NewWriter(&buffer)
	for name, content := range entries {
		entryWriter, err := zipWriter.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry: %v", err)
		}
		entryWriter.Write([]byte(content))
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buffer.Bytes()
}

func buildTarGZ(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buffer bytes.Buffer
	gzipWriter := gzip.NewWriter(&buffer)
	tarWriter := tar.NewWriter(gzipWriter)
	for name, content := range entries {
		header := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		tarWriter.Write([]byte(content))
	}
	tarWriter.Close()
	gzipWriter.Close()
	return buffer.Bytes()
}

func writeArchive(t *testing.T, data []byte, name string) string {
	t.Helper()
	archivePath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return archivePath
}

func TestExtractArchive_ZIPAndTarGZ(t *testing.T) {
	entries := map[string]string{
		"code-master/titles/1/sections/1-101.xml": "<section><num>1-101</num></section>",
		"code-master/titles/1/index.xml":          "<container><heading>Government</heading></container>",
	}

	testCases := []struct {
		name           string
		archive        []byte
		expectedFormat ArchiveFormat
	}{
		{name: "zip", archive: buildZIP(t, entries), expectedFormat: FormatZIP},
		{name: "tar.gz", archive: buildTarGZ(t, entries), expectedFormat: FormatTarGZ},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			archivePath := writeArchive(t, testCase.archive, "code."+testCase.name)
			targetDirectory := t.TempDir()

			result, err := ExtractArchive(archivePath, targetDirectory)
			if err != nil {
				t.Fatalf("ExtractArchive failed: %v", err)
			}
			if result.Format != testCase.expectedFormat {
				t.Errorf("format: got %q, want %q", result.Format, testCase.expectedFormat)
			}
			if len(result.Files) != 2 {
				t.Errorf("expected 2 files, got %d", len(result.Files))
			}

			content, err := os.ReadFile(filepath.Join(targetDirectory, "code-master", "titles", "1", "sections", "1-101.xml"))
			if err != nil {
				t.Fatalf("extracted file missing: %v", err)
			}
			if string(content) != entries["code-master/titles/1/sections/1-101.xml"] {
				t.Errorf("unexpected content %q", content)
			}
		})
	}
}

func TestExtractArchive_RejectsTraversal(t *testing.T) {
	archive := buildZIP(t, map[string]string{
		"../escape.txt":    "outside",
		"inside/ok.txt":    "inside",
		"a/../../evil.txt": "outside",
	})
	archivePath := writeArchive(t, archive, "evil.zip")
	parent := t.TempDir()
	targetDirectory := filepath.Join(parent, "target")

	result, err := ExtractArchive(archivePath, targetDirectory)
	if err != nil {
		t.Fatalf("ExtractArchive failed: %v", err)
	}
	if result.Rejected != 2 {
		t.Errorf("expected 2 rejected entries, got %d", result.Rejected)
	}
	if len(result.Files) != 1 {
		t.Errorf("expected 1 extracted file, got %d", len(result.Files))
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.txt")); !os.IsNotExist(err) {
		t.Error("traversal entry escaped the target directory")
	}
}

func TestExtractArchive_UnknownFormat(t *testing.T) {
	archivePath := writeArchive(t, []byte("<html>not an archive</html>"), "page.zip")

	_, err := ExtractArchive(archivePath, t.TempDir())
	if !errors.Is(err, ErrUnknownArchiveFormat) {
		t.Errorf("expected ErrUnknownArchiveFormat, got %v", err)
	}
}

func TestSafeJoin(t *testing.T) {
	testCases := []struct {
		entryName    string
		expectedSafe bool
	}{
		{"titles/1/index.xml", true},
		{"./titles/../titles/1.xml", true},
		{"../outside", false},
		{"/etc/passwd", false},
		{"titles/../../outside", false},
	}

	for _, testCase := range testCases {
		_, safe := safeJoin("/data/extract", testCase.entryName)
		if safe != testCase.expectedSafe {
			t.Errorf("safeJoin(%q): got %v, want %v", testCase.entryName, safe, testCase.expectedSafe)
		}
	}
}
