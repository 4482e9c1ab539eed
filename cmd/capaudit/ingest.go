package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"capaudit/internal/parser"
)

// maxZipSizeMB bounds uploaded archives.
const maxZipSizeMB = 50

func validateZip(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > maxZipSizeMB {
		return fmt.Errorf("file too large (%.1fMB), maximum is %dMB", sizeMB, maxZipSizeMB)
	}
	reader, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("file is not a valid ZIP archive: %w", err)
	}
	return reader.Close()
}

// expandZip extracts an archive into destDir and returns the supported
// document paths. Hidden files, macOS resource directories, and unsupported
// extensions are skipped.
func expandZip(path, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	var extracted []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(entry.Name)
		if strings.HasPrefix(name, ".") || strings.Contains(entry.Name, "__MACOSX") {
			continue
		}
		if !parser.IsSupportedExtension(name) {
			continue
		}

		target := filepath.Join(destDir, name)
		// Reject entries that would escape the destination.
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			continue
		}

		if err := extractEntry(entry, target); err != nil {
			return nil, err
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}

// collectInputs resolves the run arguments into parseable document paths. A
// single .zip argument expands into its contents; anything else is taken as
// individual documents.
func collectInputs(args []string, uploadDir string) ([]string, error) {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".zip") {
		if err := validateZip(args[0]); err != nil {
			return nil, err
		}
		paths, err := expandZip(args[0], uploadDir)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("archive contains no supported documents")
		}
		return paths, nil
	}

	var paths []string
	for _, arg := range args {
		if !parser.IsSupportedExtension(arg) {
			return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(arg))
		}
		if _, err := os.Stat(arg); err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		paths = append(paths, arg)
	}
	return paths, nil
}
