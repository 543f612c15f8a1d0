// Package dmgsign automates code-signing of a macOS application bundle
// shipped inside a disk image.
//
// The pipeline mounts the input DMG, copies the volume contents into a
// temporary working directory, signs the single .app bundle it finds there,
// optionally verifies both the signature and Gatekeeper acceptance, and
// repackages everything into a new compressed, read-only image. Temporary
// mount points and working directories are released on every exit path.
//
// # Basic Usage
//
//	tools := dmgsign.NewTools()
//	err := dmgsign.SignImage(tools, dmgsign.SignOptions{
//	    InputPath:  "MyApp.dmg",
//	    OutputPath: "MyApp-signed.dmg",
//	    CommonName: "Developer ID Application: Example Corp (TEAMID)",
//	    Verify:     true,
//	})
//
// The external hdiutil, codesign, spctl and security invocations all go
// through the Runner interface, so the pipeline can be exercised against a
// fake runner on any platform.
package dmgsign
