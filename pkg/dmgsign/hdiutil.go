package dmgsign

import (
	"fmt"
	"strings"
)

// Attach mounts the disk image at the given mount point.
func (t *Tools) Attach(imagePath, mountPoint string) error {
	out, err := t.run.Run("hdiutil", "attach", imagePath, "-mountpoint", mountPoint)
	if err != nil {
		return fmt.Errorf("hdiutil attach failed: %s: %w", trimOutput(out), err)
	}
	return nil
}

// Detach unmounts a previously attached disk image.
func (t *Tools) Detach(mountPoint string) error {
	out, err := t.run.Run("hdiutil", "detach", mountPoint)
	if err != nil {
		return fmt.Errorf("hdiutil detach failed: %s: %w", trimOutput(out), err)
	}
	return nil
}

// CreateImage builds a new read-only, UDZO-compressed disk image from the
// contents of srcDir, overwriting any existing file at outputPath.
func (t *Tools) CreateImage(srcDir, volumeName, outputPath string) error {
	out, err := t.run.Run("hdiutil", "create",
		"-volname", volumeName,
		"-srcfolder", srcDir,
		"-ov",
		"-format", "UDZO",
		outputPath)
	if err != nil {
		return fmt.Errorf("hdiutil create failed: %s: %w", trimOutput(out), err)
	}
	return nil
}

func trimOutput(out []byte) string {
	return strings.TrimSpace(string(out))
}
