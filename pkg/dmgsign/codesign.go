package dmgsign

import (
	"fmt"
	"strings"
)

// Sign recursively signs the bundle with the given identity. Any existing
// signature is replaced, the hardened runtime is enabled, and a trusted
// timestamp is requested from Apple's timestamp service.
func (t *Tools) Sign(bundlePath, identity string) error {
	out, err := t.run.Run("codesign",
		"--deep",
		"--force",
		"--verbose",
		"--options", "runtime",
		"--timestamp",
		"--sign", identity,
		bundlePath)
	if err != nil {
		return fmt.Errorf("codesign failed: %s: %w", trimOutput(out), err)
	}
	return nil
}

// VerifySignature runs a strict, deep verification of the bundle signature.
// The "<bundle>: valid" marker is part of codesign's output contract and must
// be present even when the tool itself exits zero. codesign writes the marker
// to stderr, so the combined output is checked.
func (t *Tools) VerifySignature(bundlePath string) error {
	out, err := t.run.Run("codesign",
		"--deep",
		"--verify",
		"--verbose=2",
		"--strict",
		bundlePath)
	if err != nil {
		return fmt.Errorf("codesign verification failed: %s: %w", trimOutput(out), err)
	}
	if !strings.Contains(string(out), bundlePath+": valid") {
		return fmt.Errorf("codesign did not report %s as valid: %s", bundlePath, trimOutput(out))
	}
	return nil
}
