package crypt

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKeyIterations matches the teacher's preference for a fixed, named
// constant over a tunable knob: the original CLI exposes no KDF-iteration
// flag, so neither does this one.
const DeriveKeyIterations = 200_000

// DeriveKey derives keyLen bytes of key material from a password and salt.
// The caller is responsible for zeroing both password and the returned key
// once the header HMAC has been computed (spec §5, "password, salt and
// derived key material are zeroed in memory immediately after use").
func DeriveKey(password, salt []byte, keyLen int) []byte {
	return pbkdf2.Key(password, salt, DeriveKeyIterations, keyLen, sha256.New)
}

// Zero overwrites b with zero bytes in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
