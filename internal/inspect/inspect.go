// Package inspect reports local file facts to the sync engine: sizes,
// content checksums, and the resume key derived from a checksum.
package inspect

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash/crc64"
	"io"
	"os"
)

const bufferSize = 64 * 1024 // 64KB buffer

// Same polynomial S3 uses for its CRC-64/NVME full-object checksums.
var crc64Table = crc64.MakeTable(0x9a6c9329ac4bc9b5)

// Inspector answers questions about local files. The engine never touches
// the filesystem directly, so a simulated variant can stand in during
// dry runs.
type Inspector interface {
	// StatSize returns the size in bytes of the file at path.
	StatSize(path string) (int64, error)

	// Checksum returns the base64-encoded SHA-256 digest of the file
	// contents, the same encoding the catalog reports back.
	Checksum(path string) (string, error)
}

// FS is the real-filesystem Inspector.
type FS struct{}

func (FS) StatSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	return info.Size(), nil
}

func (FS) Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return DigestReader(file)
}

// DigestReader consumes r and returns the base64-encoded SHA-256 digest
// of everything it read.
func DigestReader(r io.Reader) (string, error) {
	hash := sha256.New()
	buffer := make([]byte, bufferSize)

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if _, werr := hash.Write(buffer[:n]); werr != nil {
				return "", fmt.Errorf("write to hash: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}

// Simulated stats real files but never reads their contents. Checksum
// reports the empty string, which downstream logic treats as
// "unverifiable": skips are ruled out and transfers are recorded
// without data movement.
type Simulated struct {
	FS
}

func (Simulated) Checksum(path string) (string, error) {
	return "", nil
}

// TransferID derives the fixed-width resume key for a content digest.
// Identical content yields an identical key, so a rerun after an
// interrupted transfer finds the restart state the previous run left
// behind.
func TransferID(checksum string) string {
	sum := crc64.Checksum([]byte(checksum), crc64Table)
	return fmt.Sprintf("%016x", sum)
}
