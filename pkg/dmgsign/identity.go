package dmgsign

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// KeychainIdentity is one code-signing identity known to the keychain.
type KeychainIdentity struct {
	Fingerprint string // SHA-1 of the certificate, upper-case hex
	CommonName  string
}

// ResolveIdentity picks the selector passed to codesign's --sign flag.
// The certificate fingerprint wins when both selectors are given. With
// neither, the caller gets a usage error before any external tool runs.
func ResolveIdentity(fingerprint, commonName string) (string, error) {
	if fingerprint != "" {
		return fingerprint, nil
	}
	if commonName != "" {
		return commonName, nil
	}
	return "", fmt.Errorf("either a certificate fingerprint or a signing identity name is required")
}

// Lines like: 1) ABCDEF... "Developer ID Application: Example Corp (TEAMID)"
var identityLine = regexp.MustCompile(`(?m)^\s*\d+\)\s+([0-9A-Fa-f]{40})\s+"([^"]+)"`)

// FindIdentities lists the code-signing identities available in the
// user's keychains via the security tool.
func (t *Tools) FindIdentities() ([]KeychainIdentity, error) {
	out, err := t.run.Run("security", "find-identity", "-v", "-p", "codesigning")
	if err != nil {
		return nil, fmt.Errorf("security find-identity failed: %s: %w", trimOutput(out), err)
	}
	return parseIdentityList(out), nil
}

// parseIdentityList extracts (fingerprint, common name) pairs from
// security find-identity output. The tool prints the matching and valid
// sections with overlapping entries, so results are deduplicated.
func parseIdentityList(out []byte) []KeychainIdentity {
	seen := make(map[string]bool)
	var ids []KeychainIdentity
	for _, m := range identityLine.FindAllStringSubmatch(string(out), -1) {
		fp := strings.ToUpper(m[1])
		if seen[fp] {
			continue
		}
		seen[fp] = true
		ids = append(ids, KeychainIdentity{Fingerprint: fp, CommonName: m[2]})
	}
	return ids
}

// ReadP12Identity extracts the two selectors usable with sign from a
// PKCS#12 certificate export: the certificate's SHA-1 fingerprint and its
// common name.
func ReadP12Identity(p12Data []byte, password string) (*KeychainIdentity, error) {
	_, cert, _, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12 file: %w", err)
	}

	sum := sha1.Sum(cert.Raw)
	return &KeychainIdentity{
		Fingerprint: strings.ToUpper(hex.EncodeToString(sum[:])),
		CommonName:  cert.Subject.CommonName,
	}, nil
}
