package dmgsign

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"howett.net/plist"
)

// fakeRunner scripts external-tool behavior so the pipeline can run without
// hdiutil, codesign, spctl or security installed.
type fakeRunner struct {
	calls   [][]string
	handler func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	if f.handler != nil {
		return f.handler(name, args)
	}
	return nil, nil
}

// commands returns one "tool subcommand" string per recorded call, e.g.
// "hdiutil attach".
func (f *fakeRunner) commands() []string {
	var cmds []string
	for _, call := range f.calls {
		cmd := call[0]
		if len(call) > 1 {
			cmd += " " + call[1]
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// signHandler simulates a healthy toolchain: attach populates the mount
// point with the given bundles, verification and assessment report the
// expected marker text for whatever bundle they were pointed at.
func signHandler(t *testing.T, bundles ...string) func(string, []string) ([]byte, error) {
	return func(name string, args []string) ([]byte, error) {
		switch {
		case name == "hdiutil" && args[0] == "attach":
			mountPoint := args[3]
			for _, b := range bundles {
				writeBundle(t, mountPoint, b)
			}
			return []byte("/dev/disk4\t" + mountPoint), nil
		case name == "codesign" && hasArg(args, "--verify"):
			bundle := args[len(args)-1]
			return []byte(bundle + ": valid on disk\n" + bundle + ": satisfies its Designated Requirement\n" + bundle + ": valid"), nil
		case name == "spctl":
			bundle := args[len(args)-1]
			return []byte(bundle + ": accepted\nsource=Notarized Developer ID"), nil
		}
		return nil, nil
	}
}

// writeBundle lays out a minimal macOS .app bundle under dir.
func writeBundle(t *testing.T, dir, name string) string {
	t.Helper()

	execName := strings.TrimSuffix(name, ".app")
	appPath := filepath.Join(dir, name)
	macosDir := filepath.Join(appPath, "Contents", "MacOS")
	if err := os.MkdirAll(macosDir, 0755); err != nil {
		t.Fatalf("Failed to create bundle directories: %v", err)
	}

	info := map[string]interface{}{
		"CFBundleIdentifier":         "com.example." + strings.ToLower(execName),
		"CFBundleExecutable":         execName,
		"CFBundleShortVersionString": "1.2.3",
	}
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatalf("Failed to marshal Info.plist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(appPath, "Contents", "Info.plist"), data, 0644); err != nil {
		t.Fatalf("Failed to write Info.plist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(macosDir, execName), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}
	return appPath
}

// isolateTempDir redirects temp-dir creation into a fresh directory so tests
// can assert that a run leaves nothing behind.
func isolateTempDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	return tmp
}

func assertNoTempLeaks(t *testing.T, tmp string) {
	t.Helper()
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Temporary directories leaked: %s", fmt.Sprint(names))
	}
}
