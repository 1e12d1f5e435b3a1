/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"encoding/hex"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// Sha1 computes the raw 20-byte SHA-1 digest of data using go-digest, the
// same digest package the rest of the corpus relies on for content
// addressing, rather than reaching for crypto/sha1 directly.
func Sha1(data []byte) [20]byte {
	d := digest.SHA1.FromBytes(data)
	var out [20]byte
	raw, err := hex.DecodeString(d.Encoded())
	if err != nil || len(raw) != 20 {
		// digest.SHA1 always yields a 40-character hex string; this
		// branch only exists to make the impossible loud instead of
		// silently truncating.
		panic(errors.Wrap(err, "sqpack: SHA1 digest had unexpected shape"))
	}
	copy(out[:], raw)
	return out
}

// VerifySha1 reports whether data's digest matches the expected raw
// 20-byte SHA-1 value.
func VerifySha1(data []byte, expected [20]byte) bool {
	return Sha1(data) == expected
}
