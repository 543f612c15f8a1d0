package dmgsign

import (
	"fmt"
	"os/exec"
)

// Runner executes an external command and returns its combined output.
// The pipeline talks to hdiutil, codesign, spctl and security exclusively
// through this interface so it can be tested against a fake implementation
// without the macOS toolchain.
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found in PATH", name)
	}
	return exec.Command(name, args...).CombinedOutput()
}

// Tools wraps the external macOS utilities the signing pipeline depends on.
type Tools struct {
	run Runner
}

// NewTools returns a Tools that invokes the real system utilities.
func NewTools() *Tools {
	return &Tools{run: execRunner{}}
}

// NewToolsWithRunner returns a Tools backed by a custom Runner.
func NewToolsWithRunner(r Runner) *Tools {
	return &Tools{run: r}
}
