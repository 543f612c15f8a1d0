package dmgsign

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/go-macho"
	"go.mozilla.org/pkcs7"
)

// Code signing magic numbers and slot types, from Apple's cs_blobs.h.
const (
	CSMAGIC_EMBEDDED_SIGNATURE = 0xfade0cc0
	CSMAGIC_CODEDIRECTORY      = 0xfade0c02

	CSSLOT_CODEDIRECTORY                 = 0
	CSSLOT_ALTERNATE_CODEDIRECTORIES     = 0x1000
	CSSLOT_ALTERNATE_CODEDIRECTORY_LIMIT = 0x1005
	CSSLOT_SIGNATURESLOT                 = 0x10000

	CS_HASHTYPE_SHA1   = 1
	CS_HASHTYPE_SHA256 = 2
)

// SignatureInfo holds the details parsed from a binary's embedded code
// signature.
type SignatureInfo struct {
	BinaryPath   string
	CodeDirs     []CodeDirectoryInfo
	CMSPresent   bool
	SignerCN     string
	SignerTeamID string
}

// CodeDirectoryInfo summarizes one CodeDirectory blob.
type CodeDirectoryInfo struct {
	Slot       uint32
	Version    uint32
	Identifier string
	TeamID     string
	HashType   uint8
	HashSize   uint8
	CodeLimit  uint32
	PageSize   uint32
	NCodeSlots uint32
}

// InspectBundleSignature parses the embedded code signature of the bundle's
// main executable. Read-only; works without the codesign tool.
func InspectBundleSignature(appPath string) (*SignatureInfo, error) {
	execPath, err := ExecutablePath(appPath)
	if err != nil {
		return nil, err
	}
	return ParseSignature(execPath)
}

// ParseSignature parses the code signature from a Mach-O binary. Universal
// binaries are handled by inspecting the first architecture slice.
func ParseSignature(binaryPath string) (*SignatureInfo, error) {
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}

	slice := data
	if len(data) >= 4 && binary.BigEndian.Uint32(data[:4]) == 0xcafebabe { // FAT_MAGIC
		fat, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse universal binary: %w", err)
		}
		defer fat.Close()
		arch := fat.Arches[0]
		if uint64(arch.Offset)+uint64(arch.Size) > uint64(len(data)) {
			return nil, fmt.Errorf("architecture slice extends beyond file")
		}
		slice = data[arch.Offset : uint64(arch.Offset)+uint64(arch.Size)]
	}

	m, err := macho.NewFile(bytes.NewReader(slice))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Mach-O: %w", err)
	}
	defer m.Close()

	var sigOffset, sigSize uint64
	for _, load := range m.Loads {
		if cs, ok := load.(*macho.CodeSignature); ok {
			sigOffset = uint64(cs.Offset)
			sigSize = uint64(cs.Size)
			break
		}
	}
	if sigSize == 0 {
		return nil, fmt.Errorf("no code signature found in %s", binaryPath)
	}
	if sigOffset+sigSize > uint64(len(slice)) {
		return nil, fmt.Errorf("code signature extends beyond file")
	}

	return parseSuperBlob(slice[sigOffset:sigOffset+sigSize], binaryPath)
}

// parseSuperBlob walks the SuperBlob index and decodes the CodeDirectory and
// CMS blobs.
func parseSuperBlob(sigData []byte, binaryPath string) (*SignatureInfo, error) {
	if len(sigData) < 12 {
		return nil, fmt.Errorf("signature data too short")
	}

	sbMagic := binary.BigEndian.Uint32(sigData[0:4])
	if sbMagic != CSMAGIC_EMBEDDED_SIGNATURE {
		return nil, fmt.Errorf("invalid SuperBlob magic: 0x%x", sbMagic)
	}
	blobCount := binary.BigEndian.Uint32(sigData[8:12])

	indexSize := 12 + blobCount*8
	if uint32(len(sigData)) < indexSize {
		return nil, fmt.Errorf("signature data too short for blob index")
	}

	info := &SignatureInfo{BinaryPath: binaryPath}

	for i := uint32(0); i < blobCount; i++ {
		entryOffset := 12 + i*8
		blobType := binary.BigEndian.Uint32(sigData[entryOffset:])
		blobOffset := binary.BigEndian.Uint32(sigData[entryOffset+4:])

		if blobOffset+8 > uint32(len(sigData)) {
			continue
		}
		blobSize := binary.BigEndian.Uint32(sigData[blobOffset+4:])
		if blobOffset+blobSize > uint32(len(sigData)) || blobSize < 8 {
			continue
		}
		blobData := sigData[blobOffset : blobOffset+blobSize]

		switch {
		case blobType == CSSLOT_CODEDIRECTORY ||
			(blobType >= CSSLOT_ALTERNATE_CODEDIRECTORIES && blobType <= CSSLOT_ALTERNATE_CODEDIRECTORY_LIMIT):
			if cd, err := parseCodeDirectory(blobData, blobType); err == nil {
				info.CodeDirs = append(info.CodeDirs, *cd)
			}
		case blobType == CSSLOT_SIGNATURESLOT:
			parseCMSBlob(blobData, info)
		}
	}

	if len(info.CodeDirs) == 0 {
		return nil, fmt.Errorf("no CodeDirectory found in signature")
	}
	return info, nil
}

// parseCodeDirectory decodes a CodeDirectory blob header.
func parseCodeDirectory(data []byte, slot uint32) (*CodeDirectoryInfo, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("CodeDirectory too short")
	}
	if binary.BigEndian.Uint32(data[0:4]) != CSMAGIC_CODEDIRECTORY {
		return nil, fmt.Errorf("invalid CodeDirectory magic")
	}

	cd := &CodeDirectoryInfo{Slot: slot}
	cd.Version = binary.BigEndian.Uint32(data[8:12])
	identOffset := binary.BigEndian.Uint32(data[20:24])
	cd.NCodeSlots = binary.BigEndian.Uint32(data[28:32])
	cd.CodeLimit = binary.BigEndian.Uint32(data[32:36])
	cd.HashSize = data[36]
	cd.HashType = data[37]
	cd.PageSize = 1 << data[39]

	cd.Identifier = cstringAt(data, identOffset)

	// Team ID offset exists from version 0x20200 on
	if cd.Version >= 0x20200 && len(data) >= 52 {
		if teamOffset := binary.BigEndian.Uint32(data[48:52]); teamOffset > 0 {
			cd.TeamID = cstringAt(data, teamOffset)
		}
	}

	return cd, nil
}

// parseCMSBlob extracts the signer identity from the CMS blob wrapper.
// An empty wrapper means an ad-hoc signature.
func parseCMSBlob(data []byte, info *SignatureInfo) {
	if len(data) <= 8 {
		return
	}
	cmsData := data[8:] // skip magic and length
	info.CMSPresent = true

	p7, err := pkcs7.Parse(cmsData)
	if err != nil || len(p7.Signers) == 0 {
		return
	}
	signer := p7.Signers[0]
	for _, cert := range p7.Certificates {
		if cert.SerialNumber.Cmp(signer.IssuerAndSerialNumber.SerialNumber) != 0 {
			continue
		}
		info.SignerCN = cert.Subject.CommonName
		// Apple encodes the team ID as a 10-char alphanumeric OU
		for _, ou := range cert.Subject.OrganizationalUnit {
			if len(ou) == 10 && isAlphanumeric(ou) {
				info.SignerTeamID = ou
				break
			}
		}
		break
	}
}

func cstringAt(data []byte, offset uint32) string {
	if offset >= uint32(len(data)) {
		return ""
	}
	end := offset
	for end < uint32(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func hashTypeName(hashType uint8) string {
	switch hashType {
	case CS_HASHTYPE_SHA1:
		return "SHA-1"
	case CS_HASHTYPE_SHA256:
		return "SHA-256"
	default:
		return fmt.Sprintf("unknown (%d)", hashType)
	}
}

// PrintSignatureInfo prints signature information to a writer.
func PrintSignatureInfo(info *SignatureInfo, w io.Writer) {
	fmt.Fprintf(w, "Binary:       %s\n", info.BinaryPath)
	for _, cd := range info.CodeDirs {
		fmt.Fprintf(w, "CodeDirectory (slot 0x%x)\n", cd.Slot)
		fmt.Fprintf(w, "  Version:    0x%x\n", cd.Version)
		fmt.Fprintf(w, "  Identifier: %s\n", cd.Identifier)
		if cd.TeamID != "" {
			fmt.Fprintf(w, "  Team ID:    %s\n", cd.TeamID)
		}
		fmt.Fprintf(w, "  Hash Type:  %s (%d bytes)\n", hashTypeName(cd.HashType), cd.HashSize)
		fmt.Fprintf(w, "  Page Size:  %d\n", cd.PageSize)
		fmt.Fprintf(w, "  Code Limit: %d (%d slots)\n", cd.CodeLimit, cd.NCodeSlots)
	}
	switch {
	case info.SignerCN != "":
		fmt.Fprintf(w, "Signer:       %s\n", info.SignerCN)
		if info.SignerTeamID != "" {
			fmt.Fprintf(w, "Signer Team:  %s\n", info.SignerTeamID)
		}
	case !info.CMSPresent:
		fmt.Fprintf(w, "Signer:       ad-hoc (no CMS signature)\n")
	}
}
