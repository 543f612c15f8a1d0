package dmgsign

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SignOptions contains all options for signing a disk image.
type SignOptions struct {
	InputPath   string // Path to the source DMG
	OutputPath  string // Path for the signed, repackaged DMG
	Fingerprint string // SHA-1 fingerprint of the signing certificate
	CommonName  string // Common name of the signing certificate
	Verify      bool   // Run signature and execution-policy checks after signing
}

// SignImage runs the full pipeline: mount the input image, copy out its
// contents, sign the single .app bundle inside, optionally verify the
// signature and Gatekeeper acceptance, and repackage everything into a new
// compressed image. Temporary directories are released on every exit path.
func SignImage(tools *Tools, opts SignOptions) error {
	if opts.InputPath == "" {
		return fmt.Errorf("input image path is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output image path is required")
	}

	identity, err := ResolveIdentity(opts.Fingerprint, opts.CommonName)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "dmgsign-*")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	contents, err := extractImage(tools, opts.InputPath, workDir)
	if err != nil {
		return err
	}

	appPath, err := FindAppBundle(contents)
	if err != nil {
		return err
	}

	if err := tools.Sign(appPath, identity); err != nil {
		return err
	}

	if opts.Verify {
		if err := tools.VerifySignature(appPath); err != nil {
			return err
		}
		if err := tools.AssessPolicy(appPath); err != nil {
			return err
		}
	}

	return tools.CreateImage(contents, VolumeName(opts.InputPath), opts.OutputPath)
}

// VolumeName derives the new image's volume name from the original image's
// filename with the extension stripped.
func VolumeName(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// extractImage mounts the disk image on a private mount point, copies the
// volume contents into workDir/contents, and detaches the mount again. The
// mount point exists only for the duration of the call; the caller owns
// workDir.
func extractImage(tools *Tools, imagePath, workDir string) (string, error) {
	mountPoint, err := os.MkdirTemp("", "dmgsign-mount-*")
	if err != nil {
		return "", fmt.Errorf("failed to create mount point: %w", err)
	}
	defer os.RemoveAll(mountPoint)

	if err := tools.Attach(imagePath, mountPoint); err != nil {
		return "", err
	}
	attached := true
	defer func() {
		if attached {
			tools.Detach(mountPoint)
		}
	}()

	contents := filepath.Join(workDir, "contents")
	if err := CopyTree(mountPoint, contents); err != nil {
		return "", fmt.Errorf("failed to copy volume contents: %w", err)
	}

	attached = false
	if err := tools.Detach(mountPoint); err != nil {
		return "", err
	}

	return contents, nil
}

// ImageInfo describes the application bundle found inside a disk image.
type ImageInfo struct {
	AppName   string
	Bundle    BundleInfo
	Signature *SignatureInfo // nil unless signature inspection was requested
}

// InspectImage mounts a disk image, locates the .app bundle inside and
// reports its Info.plist fields, optionally together with the embedded code
// signature of its main executable. The image is left untouched.
func InspectImage(tools *Tools, imagePath string, withSignature bool) (*ImageInfo, error) {
	workDir, err := os.MkdirTemp("", "dmgsign-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	contents, err := extractImage(tools, imagePath, workDir)
	if err != nil {
		return nil, err
	}

	appPath, err := FindAppBundle(contents)
	if err != nil {
		return nil, err
	}

	bundle, err := ReadBundleInfo(appPath)
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{
		AppName: filepath.Base(appPath),
		Bundle:  *bundle,
	}

	if withSignature {
		sig, err := InspectBundleSignature(appPath)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect code signature: %w", err)
		}
		info.Signature = sig
	}

	return info, nil
}
