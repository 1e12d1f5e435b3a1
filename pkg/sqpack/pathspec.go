/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import "strings"

// PathSpec is the canonical key for an archive entry: the original
// textual path plus the three hashes the two index schemes key lookups
// on. Two PathSpecs identify the same entry when either their
// FullPathHash matches, or both their PathHash and NameHash match
// (spec.md §3).
type PathSpec struct {
	OriginalPath string
	FullPathHash uint32
	PathHash     uint32
	NameHash     uint32
}

// NewPathSpec derives the three hashes of a textual path, normalizing it
// to lower-case, forward-slash form first.
func NewPathSpec(path string) PathSpec {
	normalized := NormalizePath(path)
	dir, base := splitPath(normalized)

	return PathSpec{
		OriginalPath: path,
		FullPathHash: PathHash(normalized),
		PathHash:     PathHash(dir),
		NameHash:     PathHash(base),
	}
}

func splitPath(normalized string) (dir, base string) {
	idx := strings.LastIndexByte(normalized, '/')
	if idx < 0 {
		return "", normalized
	}
	return normalized[:idx], normalized[idx+1:]
}

// Matches reports whether either key form the two index schemes use
// agrees between p and o: FullPathHash, or the (PathHash, NameHash) pair.
// This is the lookup predicate the Creator uses to find a candidate
// existing entry for a new one (spec.md §3).
func (p PathSpec) Matches(o PathSpec) bool {
	return p.FullPathHash == o.FullPathHash || (p.PathHash == o.PathHash && p.NameHash == o.NameHash)
}

// Equal reports whether p and o identify the same entry with both key
// forms in agreement — the ordinary case where a lookup match is genuinely
// the same path.
func (p PathSpec) Equal(o PathSpec) bool {
	return p.FullPathHash == o.FullPathHash && p.PathHash == o.PathHash && p.NameHash == o.NameHash
}

// Conflicts reports whether two PathSpecs partially collide: one key form
// matches but the other doesn't (e.g. same FullPathHash but different
// (PathHash, NameHash)), which spec.md §4.4 calls out as an error rather
// than a silent add-or-replace decision.
func (p PathSpec) Conflicts(o PathSpec) bool {
	return p.Matches(o) && !p.Equal(o)
}
