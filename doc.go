// Package main provides the dmgsign CLI tool for signing macOS disk images.
//
// For the library API, see the dmgsign subpackage:
//
//	import "github.com/nomic-ai/dmgsign/pkg/dmgsign"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/nomic-ai/dmgsign@latest
package main
