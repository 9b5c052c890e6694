package rpmutils

import (
	"bytes"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// ReadKeyRing accepts an armored or binary OpenPGP public key ring.
func ReadKeyRing(data []byte) (openpgp.EntityList, error) {
	if keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data)); err == nil {
		return keys, nil
	}
	keys, err := openpgp.ReadKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading OpenPGP key ring: %w", err)
	}
	return keys, nil
}

// VerifyRepomdSignature checks repomd.xml against its armored detached
// signature (repomd.xml.asc).
func VerifyRepomdSignature(keyring openpgp.KeyRing, repomd, signature []byte) error {
	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(repomd), bytes.NewReader(signature), nil)
	if err != nil {
		return fmt.Errorf("repomd.xml signature check failed: %w", err)
	}
	if signer == nil {
		return fmt.Errorf("repomd.xml signature check failed: unknown signer")
	}
	return nil
}
