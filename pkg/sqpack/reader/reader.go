/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package reader parses an on-disk .index/.index2/.dat{0..7} triplet and
// exposes its directory and data spans for the Creator to ingest as
// PassthroughFromSqPack providers.
package reader

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// DirectoryEntry pairs a reconstructed PathSpec with the locator its
// source triplet stores for it.
type DirectoryEntry struct {
	PathSpec sqpack.PathSpec
	Locator  sqpack.DataLocator
}

// Reader holds the open files of one triplet and its parsed directory.
type Reader struct {
	indexPath  string
	index2Path string

	indexFile  *stream.FileStream
	index2File *stream.FileStream
	dataFiles  []*stream.FileStream

	entries  []DirectoryEntry
	folders  []sqpack.FolderSegmentEntry
	unknown3 []sqpack.Unknown3Entry

	logger logrus.FieldLogger
}

// Open parses indexPath and its sibling .index2/.dat{n} files. Header,
// file-segment, data-files-segment and data-span inconsistencies return
// an error (errdefs.ErrCorruptArchive for structural ones) and leave
// nothing open. An unknown3 segment that fails its SHA-1 is dropped with
// a warning, and an .index entry with no .index2 counterpart is kept with
// a zero FullPathHash.
func Open(indexPath string, logger logrus.FieldLogger) (*Reader, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if !strings.HasSuffix(indexPath, ".index") {
		return nil, errors.Errorf("sqpack reader: %s does not end in .index", indexPath)
	}
	stem := strings.TrimSuffix(indexPath, ".index")
	index2Path := stem + ".index2"

	r := &Reader{indexPath: indexPath, index2Path: index2Path, logger: logger.WithField("component", "sqpack-reader")}

	indexFile, err := stream.OpenFileStream(indexPath)
	if err != nil {
		return nil, errors.Wrap(err, "sqpack reader: open index")
	}
	r.indexFile = indexFile

	index2File, err := stream.OpenFileStream(index2Path)
	if err != nil {
		r.Close()
		return nil, errors.Wrap(err, "sqpack reader: open index2")
	}
	r.index2File = index2File

	fullHashBySpan, err := r.parseIndex2()
	if err != nil {
		r.Close()
		return nil, err
	}

	if err := r.parseIndex(fullHashBySpan); err != nil {
		r.Close()
		return nil, err
	}

	if err := r.openDataSpans(stem); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// Close releases every open file in the triplet.
func (r *Reader) Close() error {
	var firstErr error
	if r.indexFile != nil {
		if err := r.indexFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.index2File != nil {
		if err := r.index2File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range r.dataFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Entries returns the reconstructed directory: one entry per key present
// in the .index FileSegment, with its full-path hash cross-referenced
// from .index2.
func (r *Reader) Entries() []DirectoryEntry { return r.entries }

// Unknown3 returns the opaque third index segment, preserved bitwise.
func (r *Reader) Unknown3() []sqpack.Unknown3Entry { return r.unknown3 }

// Folders returns the parsed folder segment.
func (r *Reader) Folders() []sqpack.FolderSegmentEntry { return r.folders }

// SpanCount reports how many data spans this triplet has.
func (r *Reader) SpanCount() int { return len(r.dataFiles) }

// DataSpan returns the full, header-inclusive stream for a data span.
// DataLocator offsets are absolute within this stream.
func (r *Reader) DataSpan(spanIndex uint32) (stream.RandomAccessStream, error) {
	if int(spanIndex) >= len(r.dataFiles) {
		return nil, errors.Wrapf(errdefs.ErrOutOfRangePathType, "sqpack reader: span %d >= %d spans", spanIndex, len(r.dataFiles))
	}
	return r.dataFiles[spanIndex], nil
}

func readHeaderRegion(s stream.RandomAccessStream, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := s.ReadPartial(0, buf)
	if err != nil {
		return nil, err
	}
	if n < size {
		return nil, errors.Wrapf(errdefs.ErrCorruptArchive, "short header region: got %d want %d", n, size)
	}
	return buf, nil
}

// parseIndex2 parses the .index2 file and returns its FullPathHash keyed
// by DataLocator, since .index2 is the only segment that stores the
// full-path hash form.
func (r *Reader) parseIndex2() (map[sqpack.DataLocator]uint32, error) {
	topBuf, err := readHeaderRegion(r.index2File, sqpack.SqpackHeaderSize)
	if err != nil {
		return nil, errors.Wrap(err, "sqpack reader: index2 top header")
	}
	var top sqpack.SqpackHeader
	if err := top.UnmarshalBinary(topBuf); err != nil {
		return nil, errors.Wrap(err, "sqpack reader: decode index2 top header")
	}
	if err := top.Verify(sqpack.SqpackTypeSqIndex); err != nil {
		return nil, err
	}
	if !sqpack.VerifySha1(topBuf[:sqpack.ShaCoveredRegionEnd], top.Sha1) {
		return nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index2 top header SHA-1 mismatch")
	}

	subBuf := make([]byte, sqpack.SqIndexHeaderSize)
	if n, err := r.index2File.ReadPartial(sqpack.SqpackHeaderSize, subBuf); err != nil || n < len(subBuf) {
		return nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index2 sub header short read")
	}
	var sub sqpack.SqIndexHeader
	if err := sub.UnmarshalBinary(subBuf); err != nil {
		return nil, errors.Wrap(err, "sqpack reader: decode index2 sub header")
	}
	if err := sub.Verify(sqpack.IndexTypeIndex2); err != nil {
		return nil, err
	}
	if !sqpack.VerifySha1(subBuf[:sqpack.ShaCoveredRegionEnd], sub.Sha1) {
		return nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index2 sub header SHA-1 mismatch")
	}

	if sub.FileSegment.Size%sqpack.FileSegmentEntry2Size != 0 {
		return nil, errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: index2 file segment size %d not a multiple of %d", sub.FileSegment.Size, sqpack.FileSegmentEntry2Size)
	}
	count := int(sub.FileSegment.Size) / sqpack.FileSegmentEntry2Size
	raw := make([]byte, sub.FileSegment.Size)
	if n, err := r.index2File.ReadPartial(int64(sub.FileSegment.Offset), raw); err != nil || n < len(raw) {
		return nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index2 file segment short read")
	}
	if !sqpack.VerifySha1(raw, sub.FileSegment.Sha1) {
		return nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index2 file segment SHA-1 mismatch")
	}

	fullHashByLocator := make(map[sqpack.DataLocator]uint32, count)
	for i := 0; i < count; i++ {
		var e sqpack.FileSegmentEntry2
		chunk := raw[i*sqpack.FileSegmentEntry2Size : (i+1)*sqpack.FileSegmentEntry2Size]
		if err := e.UnmarshalBinary(chunk); err != nil {
			return nil, err
		}
		fullHashByLocator[e.DatFile] = e.FullPathHash
	}
	return fullHashByLocator, nil
}

// parseIndex parses the .index file's four segments, reconstructing each
// entry's PathSpec with the full-path hash supplied by parseIndex2.
func (r *Reader) parseIndex(fullHashByLocator map[sqpack.DataLocator]uint32) error {
	topBuf, err := readHeaderRegion(r.indexFile, sqpack.SqpackHeaderSize)
	if err != nil {
		return errors.Wrap(err, "sqpack reader: index top header")
	}
	var top sqpack.SqpackHeader
	if err := top.UnmarshalBinary(topBuf); err != nil {
		return errors.Wrap(err, "sqpack reader: decode index top header")
	}
	if err := top.Verify(sqpack.SqpackTypeSqIndex); err != nil {
		return err
	}
	if !sqpack.VerifySha1(topBuf[:sqpack.ShaCoveredRegionEnd], top.Sha1) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index top header SHA-1 mismatch")
	}

	subBuf := make([]byte, sqpack.SqIndexHeaderSize)
	if n, err := r.indexFile.ReadPartial(sqpack.SqpackHeaderSize, subBuf); err != nil || n < len(subBuf) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index sub header short read")
	}
	var sub sqpack.SqIndexHeader
	if err := sub.UnmarshalBinary(subBuf); err != nil {
		return errors.Wrap(err, "sqpack reader: decode index sub header")
	}
	if err := sub.Verify(sqpack.IndexTypeIndex); err != nil {
		return err
	}
	if !sqpack.VerifySha1(subBuf[:sqpack.ShaCoveredRegionEnd], sub.Sha1) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: index sub header SHA-1 mismatch")
	}

	if sub.FileSegment.Size%sqpack.FileSegmentEntrySize != 0 {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: file segment size %d not a multiple of %d", sub.FileSegment.Size, sqpack.FileSegmentEntrySize)
	}
	fileRaw := make([]byte, sub.FileSegment.Size)
	if n, err := r.indexFile.ReadPartial(int64(sub.FileSegment.Offset), fileRaw); err != nil || n < len(fileRaw) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: file segment short read")
	}
	if !sqpack.VerifySha1(fileRaw, sub.FileSegment.Sha1) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: file segment SHA-1 mismatch")
	}

	count := int(sub.FileSegment.Size) / sqpack.FileSegmentEntrySize
	entries := make([]DirectoryEntry, 0, count)
	for i := 0; i < count; i++ {
		var e sqpack.FileSegmentEntry
		chunk := fileRaw[i*sqpack.FileSegmentEntrySize : (i+1)*sqpack.FileSegmentEntrySize]
		if err := e.UnmarshalBinary(chunk); err != nil {
			return err
		}
		fullHash, ok := fullHashByLocator[e.DatFile]
		if !ok {
			r.logger.WithField("locator", e.DatFile).Warn("sqpack reader: entry present in .index has no .index2 counterpart")
		}
		entries = append(entries, DirectoryEntry{
			PathSpec: sqpack.PathSpec{PathHash: e.PathHash, NameHash: e.NameHash, FullPathHash: fullHash},
			Locator:  e.DatFile,
		})
	}
	r.entries = entries

	// DataFilesSegment: fixed 256-byte region, one 32-byte descriptor per
	// possible span slot. The per-span SHA-1 values it holds are not
	// compared against the spans, here or in openDataSpans, which verifies
	// only each span's own header SHA-1s.
	dataFilesRaw := make([]byte, sub.DataFilesSegment.Size)
	if n, err := r.indexFile.ReadPartial(int64(sub.DataFilesSegment.Offset), dataFilesRaw); err != nil || n < len(dataFilesRaw) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: data files segment short read")
	}
	if !sqpack.VerifySha1(dataFilesRaw, sub.DataFilesSegment.Sha1) {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: data files segment SHA-1 mismatch")
	}

	if sub.UnknownSegment3.Size%sqpack.Unknown3EntrySize == 0 && sub.UnknownSegment3.Size > 0 {
		raw := make([]byte, sub.UnknownSegment3.Size)
		if n, err := r.indexFile.ReadPartial(int64(sub.UnknownSegment3.Offset), raw); err == nil && n == len(raw) {
			if sqpack.VerifySha1(raw, sub.UnknownSegment3.Sha1) {
				n3 := int(sub.UnknownSegment3.Size) / sqpack.Unknown3EntrySize
				r.unknown3 = make([]sqpack.Unknown3Entry, n3)
				for i := 0; i < n3; i++ {
					chunk := raw[i*sqpack.Unknown3EntrySize : (i+1)*sqpack.Unknown3EntrySize]
					if err := r.unknown3[i].UnmarshalBinary(chunk); err != nil {
						return err
					}
				}
			} else {
				r.logger.Warn("sqpack reader: unknown3 segment SHA-1 mismatch, dropping")
			}
		}
	}

	if sub.FolderSegment.Size%sqpack.FolderSegmentEntrySize == 0 && sub.FolderSegment.Size > 0 {
		raw := make([]byte, sub.FolderSegment.Size)
		if n, err := r.indexFile.ReadPartial(int64(sub.FolderSegment.Offset), raw); err == nil && n == len(raw) {
			folderCount := int(sub.FolderSegment.Size) / sqpack.FolderSegmentEntrySize
			r.folders = make([]sqpack.FolderSegmentEntry, folderCount)
			for i := 0; i < folderCount; i++ {
				chunk := raw[i*sqpack.FolderSegmentEntrySize : (i+1)*sqpack.FolderSegmentEntrySize]
				if err := r.folders[i].UnmarshalBinary(chunk); err != nil {
					return err
				}
				if err := r.folders[i].Verify(); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// openDataSpans opens every "{stem}.dat{n}" file present contiguously
// from 0, verifying each span's own header.
func (r *Reader) openDataSpans(stem string) error {
	for i := 0; i < sqpack.MaxDataSpans; i++ {
		path := fmt.Sprintf("%s.dat%d", stem, i)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return errors.Wrapf(err, "sqpack reader: stat %s", path)
		}

		f, err := stream.OpenFileStream(path)
		if err != nil {
			return errors.Wrapf(err, "sqpack reader: open %s", path)
		}

		topBuf, err := readHeaderRegion(f, sqpack.SqpackHeaderSize)
		if err != nil {
			f.Close()
			return errors.Wrapf(err, "sqpack reader: %s top header", path)
		}
		var top sqpack.SqpackHeader
		if err := top.UnmarshalBinary(topBuf); err != nil {
			f.Close()
			return err
		}
		if err := top.Verify(sqpack.SqpackTypeSqData); err != nil {
			f.Close()
			return err
		}
		if !sqpack.VerifySha1(topBuf[:sqpack.ShaCoveredRegionEnd], top.Sha1) {
			f.Close()
			return errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: %s top header SHA-1 mismatch", path)
		}

		subBuf := make([]byte, sqpack.SqDataHeaderSize)
		if n, err := f.ReadPartial(sqpack.SqpackHeaderSize, subBuf); err != nil || n < len(subBuf) {
			f.Close()
			return errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: %s sub header short read", path)
		}
		var sub sqpack.SqDataHeader
		if err := sub.UnmarshalBinary(subBuf); err != nil {
			f.Close()
			return err
		}
		if err := sub.Verify(uint32(i)); err != nil {
			f.Close()
			return err
		}
		if !sqpack.VerifySha1(subBuf[:sqpack.ShaCoveredRegionEnd], sub.Sha1) {
			f.Close()
			return errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: %s sub header SHA-1 mismatch", path)
		}

		r.dataFiles = append(r.dataFiles, f)
	}

	if len(r.dataFiles) == 0 {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: triplet has no data spans")
	}
	return nil
}

// sortedByLocator is a debug helper used by tests to assert span/offset
// ordering of the raw directory.
func sortedByLocator(entries []DirectoryEntry) []DirectoryEntry {
	out := make([]DirectoryEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Locator < out[j].Locator })
	return out
}
