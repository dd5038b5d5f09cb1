package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"
)

// CodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength gives 8*log2(32) = 40 bits of entropy.
const CodeLength = 8

// GenerateCode returns a random share code drawn from CodeAlphabet.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(CodeLength)
	for _, b := range buf {
		// 256 is a multiple of 32, so the modulo keeps the distribution uniform
		sb.WriteByte(CodeAlphabet[int(b)%len(CodeAlphabet)])
	}
	return sb.String(), nil
}

// NormalizeCode trims and upper-cases user typed codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var maxBlobSuffix = big.NewInt(1_000_000_000)

// BlobName builds a stored name as <unix millis>-<random below 1e9><original extension>.
func BlobName(originalName string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, maxBlobSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to read random suffix: %w", err)
	}
	return fmt.Sprintf("%d-%d%s", now.UnixMilli(), n.Int64(), safeExtension(originalName)), nil
}

func safeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
