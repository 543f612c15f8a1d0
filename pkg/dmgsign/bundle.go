package dmgsign

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// BundleInfo holds the identifying fields read from a bundle's Info.plist.
type BundleInfo struct {
	BundleID   string
	Executable string
	Version    string
}

// FindAppBundle locates the single .app bundle among the immediate children
// of dir. Zero matches is an error, and so is more than one: with multiple
// bundles there is no way to know which one the caller meant to sign, so the
// ambiguity is surfaced instead of resolved by directory-iteration order.
func FindAppBundle(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted contents: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".app") {
			matches = append(matches, entry.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no .app bundle found in %s", dir)
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		return "", fmt.Errorf("multiple .app bundles found in %s: %s", dir, strings.Join(matches, ", "))
	}
}

// ReadBundleInfo reads the bundle identifier, executable name and version
// from the bundle's Info.plist.
func ReadBundleInfo(appPath string) (*BundleInfo, error) {
	data, err := readInfoPlist(appPath)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Info.plist: %w", err)
	}

	info := &BundleInfo{}
	if v, ok := raw["CFBundleIdentifier"].(string); ok {
		info.BundleID = v
	}
	if v, ok := raw["CFBundleExecutable"].(string); ok {
		info.Executable = v
	}
	if v, ok := raw["CFBundleShortVersionString"].(string); ok {
		info.Version = v
	}

	if info.BundleID == "" {
		return nil, fmt.Errorf("CFBundleIdentifier not found in Info.plist")
	}
	return info, nil
}

// ExecutablePath returns the path of the bundle's main executable.
func ExecutablePath(appPath string) (string, error) {
	info, err := ReadBundleInfo(appPath)
	if err != nil {
		return "", err
	}
	if info.Executable == "" {
		return "", fmt.Errorf("CFBundleExecutable not found in Info.plist")
	}

	// macOS bundles keep the executable under Contents/MacOS; flat
	// (iOS-style) bundles keep it at the bundle root.
	candidates := []string{
		filepath.Join(appPath, "Contents", "MacOS", info.Executable),
		filepath.Join(appPath, info.Executable),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("executable %s not found in %s", info.Executable, appPath)
}

func readInfoPlist(appPath string) ([]byte, error) {
	candidates := []string{
		filepath.Join(appPath, "Contents", "Info.plist"),
		filepath.Join(appPath, "Info.plist"),
	}
	for _, p := range candidates {
		if data, err := os.ReadFile(p); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("no Info.plist found in %s", appPath)
}

// CopyTree recursively copies the directory tree at src into dst, preserving
// structure, file modes and symlinks. DMG volumes routinely carry an
// Applications symlink, which must survive the round trip.
func CopyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		dstPath := filepath.Join(dst, relPath)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, dstPath)
		}

		if info.IsDir() {
			return os.MkdirAll(dstPath, info.Mode())
		}

		return copyFile(path, dstPath, info.Mode())
	})
}

// copyFile copies a single file from src to dst with the given mode using
// streaming I/O.
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
