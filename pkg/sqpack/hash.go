/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"hash/crc32"
	"strings"
)

// PathHash is the historical SqPack path hash: a standard CRC-32 (IEEE
// 802.3 polynomial) over the lower-cased, forward-slash-normalized bytes
// of a path component. hash/crc32 is a genuine stdlib fit here — there is
// no third-party CRC-32 implementation anywhere in the corpus this engine
// was built against, and none is warranted for a checksum this standard.
func PathHash(component string) uint32 {
	return crc32.ChecksumIEEE([]byte(normalizeHashInput(component)))
}

func normalizeHashInput(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, `\`, "/"))
}

// NormalizePath lower-cases and forward-slash-normalizes a full entry
// path, the same transform PathHash applies to each component.
func NormalizePath(path string) string {
	return normalizeHashInput(path)
}
