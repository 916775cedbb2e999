package bulk

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// ErrUnknownArchiveFormat is returned when a file is neither ZIP nor gzip'd tar.
var ErrUnknownArchiveFormat = errors.New("unknown archive format")

// ArchiveFormat identifies how a downloaded archive is packed.
type ArchiveFormat string

const (
	FormatZIP   ArchiveFormat = "zip"
	FormatTarGZ ArchiveFormat = "tar.gz"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// ExtractResult lists what an extraction wrote.
type ExtractResult struct {
	Format ArchiveFormat
	Files  []string
	// Rejected counts entries whose names would escape the target directory.
	Rejected int
}

// DetectFormat sniffs the archive format from the leading bytes.
func DetectFormat(header []byte) (ArchiveFormat, error) {
	switch {
	case bytes.HasPrefix(header, zipMagic):
		return FormatZIP, nil
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGZ, nil
	default:
		return "", ErrUnknownArchiveFormat
	}
}

// ExtractArchive unpacks a ZIP or tar.gz archive into targetDirectory.
// Entries that would land outside targetDirectory are skipped and counted.
func ExtractArchive(archivePath string, targetDirectory string) (*ExtractResult, error) {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer archiveFile.Close()

	header := make([]byte, 4)
	headerLength, err := io.ReadFull(archiveFile, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read archive header: %w", err)
	}
	format, err := DetectFormat(header[:headerLength])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archivePath, err)
	}

	if err := os.MkdirAll(targetDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	switch format {
	case FormatZIP:
		return extractZIP(archivePath, targetDirectory)
	default:
		if _, err := archiveFile.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind archive: %w", err)
		}
		return extractTarGZ(archiveFile, targetDirectory)
	}
}

func extractZIP(zipPath string, targetDirectory string) (*ExtractResult, error) {
	zipReader, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("failed to open ZIP %s: %w", zipPath, err)
	}
	defer zipReader.Close()

	result := &ExtractResult{Format: FormatZIP}
	for _, zipEntry := range zipReader.File {
		extractedPath, safe := safeJoin(targetDirectory, zipEntry.Name)
		if !safe {
			result.Rejected++
			continue
		}

		if zipEntry.FileInfo().IsDir() {
			if err := os.MkdirAll(extractedPath, 0755); err != nil {
				return result, fmt.Errorf("failed to create %s: %w", extractedPath, err)
			}
			continue
		}

		entryReader, err := zipEntry.Open()
		if err != nil {
			return result, fmt.Errorf("failed to open ZIP entry %s: %w", zipEntry.Name, err)
		}
		err = writeEntry(extractedPath, entryReader)
		entryReader.Close()
		if err != nil {
			return result, fmt.Errorf("failed to extract %s: %w", zipEntry.Name, err)
		}

		result.Files = append(result.Files, extractedPath)
	}

	return result, nil
}

func extractTarGZ(archive io.Reader, targetDirectory string) (*ExtractResult, error) {
	gzipReader, err := gzip.NewReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	result := &ExtractResult{Format: FormatTarGZ}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("tar read error: %w", err)
		}

		extractedPath, safe := safeJoin(targetDirectory, header.Name)
		if !safe {
			result.Rejected++
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(extractedPath, 0755); err != nil {
				return result, fmt.Errorf("failed to create %s: %w", extractedPath, err)
			}
		case tar.TypeReg:
			if err := writeEntry(extractedPath, tarReader); err != nil {
				return result, fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}
			result.Files = append(result.Files, extractedPath)
		}
	}

	return result, nil
}

func writeEntry(extractedPath string, entry io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(extractedPath), 0755); err != nil {
		return err
	}
	outputFile, err := os.Create(extractedPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outputFile, entry); err != nil {
		outputFile.Close()
		return err
	}
	return outputFile.Close()
}

// safeJoin resolves an archive entry name under targetDirectory, refusing
// absolute names and names that climb out through "..".
func safeJoin(targetDirectory string, entryName string) (string, bool) {
	if filepath.IsAbs(entryName) || strings.HasPrefix(entryName, "/") {
		return "", false
	}
	joined := filepath.Join(targetDirectory, entryName)
	relative, err := filepath.Rel(targetDirectory, joined)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}
