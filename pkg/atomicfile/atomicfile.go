// Package atomicfile replaces files through a temporary sibling and rename,
// so readers see either the old or the new content, never a partial write.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to a temporary file in targetPath's directory and
// renames it over targetPath. Concurrent writers of one path leave the last
// complete write in place.
func WriteFile(targetPath string, data []byte, perm os.FileMode) error {
	temporaryFile, err := os.CreateTemp(filepath.Dir(targetPath), filepath.Base(targetPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", targetPath, err)
	}
	temporaryPath := temporaryFile.Name()

	if _, err := temporaryFile.Write(data); err != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("failed to write %s: %w", temporaryPath, err)
	}
	if err := temporaryFile.Chmod(perm); err != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("failed to set mode of %s: %w", temporaryPath, err)
	}
	if err := temporaryFile.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("failed to close %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, targetPath); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("failed to move %s into place: %w", targetPath, err)
	}
	return nil
}
