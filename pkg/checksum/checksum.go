// Package checksum provides SHA-256 helpers for archived listing versions. Archives record
// the digest at write time and verify it when a version is read back.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// CalculateSHA256 calculates the SHA256 checksum of data from a reader
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SumBytes returns the hex SHA256 of data
func SumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyBytes reports whether data hashes to expected. Comparison ignores hex case.
func VerifyBytes(data []byte, expected string) bool {
	return strings.EqualFold(SumBytes(data), expected)
}
