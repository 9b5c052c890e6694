package ospackage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// NormalizeAlgorithm maps repository spellings ("sha", "SHA256", "MD5Sum")
// to the canonical names used in Checksum.
func NormalizeAlgorithm(alg string) string {
	a := strings.ToLower(strings.TrimSpace(alg))
	switch a {
	case "sha":
		return "sha1"
	case "md5sum":
		return "md5"
	}
	return a
}

// NewHash returns a hasher for the checksum algorithm.
func (c Checksum) NewHash() (hash.Hash, error) {
	switch NormalizeAlgorithm(c.Algorithm) {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", c.Algorithm)
	}
}

// Matches compares a computed digest against the declared value.
func (c Checksum) Matches(sum []byte) bool {
	return strings.EqualFold(hex.EncodeToString(sum), c.Value)
}

// VerifyBytes hashes data and returns an IntegrityError on mismatch.
func (c Checksum) VerifyBytes(source string, data []byte) error {
	h, err := c.NewHash()
	if err != nil {
		return err
	}
	h.Write(data)
	sum := h.Sum(nil)
	if !c.Matches(sum) {
		return &IntegrityError{Source: source, Expected: c, Actual: hex.EncodeToString(sum)}
	}
	return nil
}
