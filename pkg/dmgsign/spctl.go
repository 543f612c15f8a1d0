package dmgsign

import (
	"fmt"
	"strings"
)

// AssessPolicy checks the bundle against the system's execution policy.
// This is a separate trust decision from signature validity: Gatekeeper
// acceptance also depends on notarization state, which is outside this
// tool's control. The "<bundle>: accepted" marker must appear in the
// combined output.
func (t *Tools) AssessPolicy(bundlePath string) error {
	out, err := t.run.Run("spctl", "-a", "-t", "exec", "-vv", bundlePath)
	if err != nil {
		return fmt.Errorf("spctl assessment failed: %s: %w", trimOutput(out), err)
	}
	if !strings.Contains(string(out), bundlePath+": accepted") {
		return fmt.Errorf("spctl did not report %s as accepted: %s", bundlePath, trimOutput(out))
	}
	return nil
}
