/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package intercept

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sqpack-overlay/engine/pkg/handle"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

// Classification is the outcome of matching a requested path against the
// {base}/{parent}/{name}.win32.{index|index2|dat0..7} shape spec.md
// §4.1/§6 describe.
type Classification struct {
	IndexPath string
	PathType  handle.PathType
	SpanIndex uint32
}

// Classify canonicalizes requestedPath under baseDir and, if it matches
// one of a triplet's three file kinds, returns the canonical .index
// sibling path and which stream it names. ok is false for any path that
// should fall through to the real OS open.
func Classify(baseDir, requestedPath string) (Classification, bool) {
	cleaned := filepath.Clean(requestedPath)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(baseDir, cleaned)
	}

	rel, err := filepath.Rel(baseDir, cleaned)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Classification{}, false
	}

	canonical := filepath.Join(baseDir, rel)
	canonical = filepath.ToSlash(canonical)

	switch {
	case strings.HasSuffix(canonical, ".win32.index"):
		return Classification{IndexPath: canonical, PathType: handle.PathTypeIndex}, true
	case strings.HasSuffix(canonical, ".win32.index2"):
		return Classification{
			IndexPath: strings.TrimSuffix(canonical, "2"),
			PathType:  handle.PathTypeIndex2,
		}, true
	}

	for i := 0; i < sqpack.MaxDataSpans; i++ {
		suffix := ".win32.dat" + strconv.Itoa(i)
		if strings.HasSuffix(canonical, suffix) {
			return Classification{
				IndexPath: stemWithSuffix(canonical, suffix, ".win32.index"),
				PathType:  handle.PathTypeData,
				SpanIndex: uint32(i),
			}, true
		}
	}

	return Classification{}, false
}

func stemWithSuffix(path, oldSuffix, newSuffix string) string {
	return strings.TrimSuffix(path, oldSuffix) + newSuffix
}
