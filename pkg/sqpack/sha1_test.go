/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"crypto/sha1" //nolint:gosec // format-mandated digest, verified against stdlib for the test only
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSha1MatchesStdlib(t *testing.T) {
	data := []byte("the quick brown fox")
	want := sha1.Sum(data)
	got := Sha1(data)
	assert.Equal(t, [20]byte(want), got)
}

func TestVerifySha1(t *testing.T) {
	data := []byte("payload")
	digest := Sha1(data)
	assert.True(t, VerifySha1(data, digest))
	assert.False(t, VerifySha1([]byte("other"), digest))
}
