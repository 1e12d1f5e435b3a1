/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"bytes"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// DefaultMaxFileSize is the per-span byte ceiling freeze uses when a
// caller doesn't override it: 2,000,000,000 bytes, the archive format's
// own MaxFileSize_Value.
const DefaultMaxFileSize = 0x77359400

// MaxFileSizeCeiling is the hard ceiling a configured MaxFileSize may not
// exceed, bounded by the DataLocator's offset bit width (spec.md §4.4:
// "hard ceiling 32 GiB per span index shape").
const MaxFileSizeCeiling = 0x800000000

// FreezeOptions parameterizes the View Assembler.
type FreezeOptions struct {
	// MaxFileSize bounds how many post-header bytes a single data span
	// may hold before a new span is started. Zero means DefaultMaxFileSize.
	MaxFileSize uint64
	// YYYYMMDD and TimeOfDay populate every emitted SqpackHeader's
	// timestamp fields.
	YYYYMMDD uint32
	TimeOfDay uint32
}

func (o FreezeOptions) maxFileSize() uint64 {
	if o.MaxFileSize == 0 {
		return DefaultMaxFileSize
	}
	return o.MaxFileSize
}

type placedEntry struct {
	pathSpec sqpack.PathSpec
	locator  sqpack.DataLocator
}

// Freeze assembles the Creator's merged directory into SqpackViews. Per
// spec.md §4.4, no entry payload bytes are copied or read here: data
// spans are stitched lazily with stream.CompositeStream, and index
// segments are built purely from each provider's PathSpec/Size() — never
// from its byte content.
func Freeze(c *Creator, opts FreezeOptions) (*SqpackViews, error) {
	if opts.MaxFileSize > MaxFileSizeCeiling {
		return nil, errors.Errorf("sqpack creator: max file size %d exceeds ceiling %d", opts.MaxFileSize, MaxFileSizeCeiling)
	}

	dataStreams, placed, err := buildDataSpans(c.entries, opts)
	if err != nil {
		return nil, err
	}

	indexStream, err := buildIndexStream(placed, c.unknown3, opts)
	if err != nil {
		return nil, err
	}
	index2Stream, err := buildIndex2Stream(placed, opts)
	if err != nil {
		return nil, err
	}

	closers := make([]io.Closer, len(c.openReaders))
	for i, r := range c.openReaders {
		closers[i] = r
	}

	return &SqpackViews{Index: indexStream, Index2: index2Stream, Data: dataStreams, closers: closers, logger: c.logger}, nil
}

func buildDataSpans(entries []provider.EntryProvider, opts FreezeOptions) ([]stream.RandomAccessStream, []placedEntry, error) {
	maxSize := opts.maxFileSize()

	var spans []stream.RandomAccessStream
	placed := make([]placedEntry, 0, len(entries))

	spanIndex := uint32(0)
	cursor := uint64(sqpack.DataSpanHeaderSize)
	var ranges []stream.Range

	flush := func() error {
		s, err := buildOneDataSpan(spanIndex, cursor, ranges, opts)
		if err != nil {
			return err
		}
		spans = append(spans, s)
		return nil
	}

	for _, p := range entries {
		size := uint64(p.Size())
		if size%sqpack.EntryAlignment != 0 {
			return nil, nil, errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack creator: entry %s is not 128-byte aligned (%d bytes)", p.PathSpec().OriginalPath, size)
		}

		if len(ranges) > 0 && cursor-sqpack.DataSpanHeaderSize+size > maxSize {
			if err := flush(); err != nil {
				return nil, nil, err
			}
			spanIndex++
			cursor = sqpack.DataSpanHeaderSize
			ranges = nil
		}

		if spanIndex >= sqpack.MaxDataSpans {
			return nil, nil, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack creator: ran out of data span slots")
		}

		locator := sqpack.NewDataLocator(spanIndex, cursor)
		ranges = append(ranges, stream.Range{Offset: int64(cursor), Stream: p})
		placed = append(placed, placedEntry{pathSpec: p.PathSpec(), locator: locator})
		cursor += size
	}

	if len(ranges) > 0 || len(spans) == 0 {
		if err := flush(); err != nil {
			return nil, nil, err
		}
	}

	return spans, placed, nil
}

func buildOneDataSpan(spanIndex uint32, cursor uint64, ranges []stream.Range, opts FreezeOptions) (stream.RandomAccessStream, error) {
	dataSize := cursor - sqpack.DataSpanHeaderSize

	sub := sqpack.NewSqDataHeader(spanIndex, opts.maxFileSize())
	if err := sub.SetDataSize(dataSize); err != nil {
		return nil, err
	}
	// DataSha1 (the hash of the post-header body) is intentionally left
	// zero: computing it would require reading every entry's bytes
	// eagerly, which is exactly what freeze must not do. Real clients do
	// not validate it for modded archives.
	subBytes, err := sub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sub.Sha1 = sqpack.Sha1(subBytes[:sqpack.ShaCoveredRegionEnd])
	subBytes, err = sub.MarshalBinary()
	if err != nil {
		return nil, err
	}

	top := sqpack.NewSqpackHeader(sqpack.SqpackTypeSqData, opts.YYYYMMDD, opts.TimeOfDay)
	topBytes, err := top.MarshalBinary()
	if err != nil {
		return nil, err
	}
	top.Sha1 = sqpack.Sha1(topBytes[:sqpack.ShaCoveredRegionEnd])
	topBytes, err = top.MarshalBinary()
	if err != nil {
		return nil, err
	}

	header := append(append([]byte{}, topBytes...), subBytes...)
	allRanges := make([]stream.Range, 0, len(ranges)+1)
	allRanges = append(allRanges, stream.Range{Offset: 0, Stream: stream.NewMemoryStream("data-span-header", header)})
	allRanges = append(allRanges, ranges...)

	return stream.NewCompositeStream("data-span", allRanges, int64(cursor)), nil
}

func buildIndexStream(placed []placedEntry, unknown3 []sqpack.Unknown3Entry, opts FreezeOptions) (stream.RandomAccessStream, error) {
	sorted := make([]placedEntry, len(placed))
	copy(sorted, placed)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].pathSpec.PathHash != sorted[j].pathSpec.PathHash {
			return sorted[i].pathSpec.PathHash < sorted[j].pathSpec.PathHash
		}
		return sorted[i].pathSpec.NameHash < sorted[j].pathSpec.NameHash
	})

	fileSegment := &bytes.Buffer{}
	for _, e := range sorted {
		entry := sqpack.FileSegmentEntry{NameHash: e.pathSpec.NameHash, PathHash: e.pathSpec.PathHash, DatFile: e.locator}
		encoded, err := entry.MarshalBinary()
		if err != nil {
			return nil, err
		}
		fileSegment.Write(encoded)
	}

	folderSegment := &bytes.Buffer{}
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].pathSpec.PathHash == sorted[i].pathSpec.PathHash {
			j++
		}
		entry := sqpack.FolderSegmentEntry{
			NameHash:          sorted[i].pathSpec.PathHash,
			FileSegmentOffset: uint32(i * sqpack.FileSegmentEntrySize),
			FileSegmentSize:   uint32((j - i) * sqpack.FileSegmentEntrySize),
		}
		encoded, err := entry.MarshalBinary()
		if err != nil {
			return nil, err
		}
		folderSegment.Write(encoded)
		i = j
	}

	unknown3Segment := &bytes.Buffer{}
	for _, u := range unknown3 {
		encoded, err := u.MarshalBinary()
		if err != nil {
			return nil, err
		}
		unknown3Segment.Write(encoded)
	}

	dataFilesSegment := make([]byte, sqpack.DataFileDescriptorSize*sqpack.MaxDataSpans)

	return buildIndexShell("index", sqpack.IndexTypeIndex, fileSegment.Bytes(), dataFilesSegment, unknown3Segment.Bytes(), folderSegment.Bytes(), opts)
}

func buildIndex2Stream(placed []placedEntry, opts FreezeOptions) (stream.RandomAccessStream, error) {
	sorted := make([]placedEntry, len(placed))
	copy(sorted, placed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].pathSpec.FullPathHash < sorted[j].pathSpec.FullPathHash
	})

	fileSegment := &bytes.Buffer{}
	for _, e := range sorted {
		entry := sqpack.FileSegmentEntry2{FullPathHash: e.pathSpec.FullPathHash, DatFile: e.locator}
		encoded, err := entry.MarshalBinary()
		if err != nil {
			return nil, err
		}
		fileSegment.Write(encoded)
	}

	dataFilesSegment := make([]byte, sqpack.DataFileDescriptorSize*sqpack.MaxDataSpans)

	return buildIndexShell("index2", sqpack.IndexTypeIndex2, fileSegment.Bytes(), dataFilesSegment, nil, nil, opts)
}

// buildIndexShell lays out the common SqpackHeader + SqIndexHeader +
// four segments shared by .index and .index2, entirely in memory: every
// byte here is small, self-contained metadata, never entry payload, so
// building it eagerly doesn't violate the lazy-materialization rule.
func buildIndexShell(label string, kind sqpack.IndexType, fileSegment, dataFilesSegment, unknown3Segment, folderSegment []byte, opts FreezeOptions) (stream.RandomAccessStream, error) {
	segments := [][]byte{fileSegment, dataFilesSegment, unknown3Segment, folderSegment}
	cursor := uint32(sqpack.SqpackHeaderSize + sqpack.SqIndexHeaderSize)
	descriptors := make([]sqpack.SegmentDescriptor, len(segments))
	entrySizes := [4]int{sqpack.FileSegmentEntrySize, sqpack.DataFileDescriptorSize, sqpack.Unknown3EntrySize, sqpack.FolderSegmentEntrySize}
	if kind == sqpack.IndexTypeIndex2 {
		entrySizes[0] = sqpack.FileSegmentEntry2Size
	}
	for i, seg := range segments {
		descriptors[i] = sqpack.SegmentDescriptor{
			Count:  uint32(len(seg) / entrySizes[i]),
			Offset: cursor,
			Size:   uint32(len(seg)),
			Sha1:   sqpack.Sha1(seg),
		}
		cursor += uint32(len(seg))
	}

	sub := sqpack.SqIndexHeader{
		HeaderSize:       sqpack.SqIndexHeaderSize,
		FileSegment:      descriptors[0],
		DataFilesSegment: descriptors[1],
		UnknownSegment3:  descriptors[2],
		FolderSegment:    descriptors[3],
		Type:             uint32(kind),
	}
	subBytes, err := sub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sub.Sha1 = sqpack.Sha1(subBytes[:sqpack.ShaCoveredRegionEnd])
	subBytes, err = sub.MarshalBinary()
	if err != nil {
		return nil, err
	}

	top := sqpack.NewSqpackHeader(sqpack.SqpackTypeSqIndex, opts.YYYYMMDD, opts.TimeOfDay)
	topBytes, err := top.MarshalBinary()
	if err != nil {
		return nil, err
	}
	top.Sha1 = sqpack.Sha1(topBytes[:sqpack.ShaCoveredRegionEnd])
	topBytes, err = top.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, int(cursor))
	out = append(out, topBytes...)
	out = append(out, subBytes...)
	for _, seg := range segments {
		out = append(out, seg...)
	}

	return stream.NewMemoryStream(label, out), nil
}
