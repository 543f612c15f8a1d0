package main

import (
	"fmt"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/nomic-ai/dmgsign/pkg/dmgsign"
)

const version = "1.0.0"

const usage = `dmgsign - macOS DMG Code Signing Tool

A command-line tool for signing the application bundle inside a macOS disk
image and repackaging it into a new compressed DMG.

Usage:
  dmgsign sign --input=<dmg> --output=<dmg> [--fingerprint=<sha1>] [--identity=<name>] [--verify]
  dmgsign info --input=<dmg> [--signature]
  dmgsign identities [--p12=<path>] [--password=<password>]
  dmgsign -h | --help
  dmgsign --version

Commands:
  sign        Sign the .app bundle inside a DMG and build a new signed DMG
  info        Display information about the bundle inside a DMG
  identities  List available code-signing identities

Options:
  --input=<dmg>         Path to the input DMG file
  --output=<dmg>        Path for the output signed DMG file
  --fingerprint=<sha1>  SHA-1 fingerprint of the signing certificate (or DMGSIGN_FINGERPRINT env var)
  --identity=<name>     Common name of the signing certificate (or DMGSIGN_IDENTITY env var)
  --verify              Verify the signature and Gatekeeper acceptance after signing
  --signature           Show the embedded code signature of the bundle's main executable
  --p12=<path>          Print the selectors for a PKCS#12 certificate export instead of the keychain
  --password=<password> Password for the P12 file (or DMGSIGN_P12_PASSWORD env var)
  -h --help             Show this help message
  --version             Show version

Environment Variables:
  DMGSIGN_FINGERPRINT   Certificate SHA-1 fingerprint (overridden by --fingerprint)
  DMGSIGN_IDENTITY      Signing identity common name (overridden by --identity)
  DMGSIGN_P12_PASSWORD  P12 password (overridden by --password)

Examples:
  # Sign the app inside a DMG by identity name
  dmgsign sign --input=MyApp.dmg --output=MyApp-signed.dmg --identity="Developer ID Application: Example Corp (TEAMID)"

  # Sign by certificate fingerprint and verify the result
  dmgsign sign --input=MyApp.dmg --output=MyApp-signed.dmg --fingerprint=0123...CDEF --verify

  # Inspect the bundle inside a DMG, including its code signature
  dmgsign info --input=MyApp.dmg --signature

  # List code-signing identities in the keychain
  dmgsign identities

  # Print the fingerprint and common name of a P12 export
  dmgsign identities --p12=cert.p12 --password=secret
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if sign, _ := opts.Bool("sign"); sign {
		if err := runSign(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if info, _ := opts.Bool("info"); info {
		if err := runInfo(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if identities, _ := opts.Bool("identities"); identities {
		if err := runIdentities(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func runSign(opts docopt.Opts) error {
	inputPath, _ := opts.String("--input")
	outputPath, _ := opts.String("--output")
	fingerprint, _ := opts.String("--fingerprint")
	commonName, _ := opts.String("--identity")
	verify, _ := opts.Bool("--verify")

	// Get values from environment if not provided via flags
	if fingerprint == "" {
		fingerprint = os.Getenv("DMGSIGN_FINGERPRINT")
	}
	if commonName == "" {
		commonName = os.Getenv("DMGSIGN_IDENTITY")
	}

	fmt.Printf("Signing DMG: %s\n", inputPath)
	if fingerprint != "" {
		fmt.Printf("Using fingerprint: %s\n", fingerprint)
	} else if commonName != "" {
		fmt.Printf("Using identity: %s\n", commonName)
	}
	fmt.Printf("Output: %s\n", outputPath)
	fmt.Println()

	err := dmgsign.SignImage(dmgsign.NewTools(), dmgsign.SignOptions{
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Fingerprint: fingerprint,
		CommonName:  commonName,
		Verify:      verify,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Successfully signed DMG: %s\n", outputPath)
	return nil
}

func runInfo(opts docopt.Opts) error {
	inputPath, _ := opts.String("--input")
	showSignature, _ := opts.Bool("--signature")

	info, err := dmgsign.InspectImage(dmgsign.NewTools(), inputPath, showSignature)
	if err != nil {
		return err
	}

	fmt.Println("DMG Information")
	fmt.Println("===============")
	fmt.Printf("File:        %s\n", inputPath)
	fmt.Printf("App Name:    %s\n", info.AppName)
	fmt.Printf("Bundle ID:   %s\n", info.Bundle.BundleID)
	fmt.Printf("Executable:  %s\n", info.Bundle.Executable)
	if info.Bundle.Version != "" {
		fmt.Printf("Version:     %s\n", info.Bundle.Version)
	}

	if info.Signature != nil {
		fmt.Println()
		fmt.Println("Code Signature Details")
		fmt.Println("======================")
		dmgsign.PrintSignatureInfo(info.Signature, os.Stdout)
	}

	return nil
}

func runIdentities(opts docopt.Opts) error {
	p12Path, _ := opts.String("--p12")
	password, _ := opts.String("--password")

	if password == "" {
		password = os.Getenv("DMGSIGN_P12_PASSWORD")
	}

	if p12Path != "" {
		p12Data, err := os.ReadFile(p12Path)
		if err != nil {
			return fmt.Errorf("failed to read P12 file: %w", err)
		}
		id, err := dmgsign.ReadP12Identity(p12Data, password)
		if err != nil {
			return err
		}
		fmt.Printf("Fingerprint: %s\n", id.Fingerprint)
		fmt.Printf("Common Name: %s\n", id.CommonName)
		return nil
	}

	ids, err := dmgsign.NewTools().FindIdentities()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No code-signing identities found")
		return nil
	}
	for i, id := range ids {
		fmt.Printf("  [%d] %s\n", i+1, id.CommonName)
		fmt.Printf("      Fingerprint: %s\n", id.Fingerprint)
	}
	return nil
}
