/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

// fixtureTriplet builds a minimal, structurally valid .index/.index2/.dat0
// triplet on disk holding exactly one Empty entry, and returns the path to
// the .index file.
func fixtureTriplet(t *testing.T, dir string, ps sqpack.PathSpec) string {
	t.Helper()

	entryBytes := buildEmptyEntryBytes(t)
	locator := sqpack.NewDataLocator(0, sqpack.DataSpanHeaderSize)

	dataSpan := buildDataSpan(t, 0, entryBytes)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.win32.dat0"), dataSpan, 0o644))

	dataFilesSegment := make([]byte, sqpack.DataFileDescriptorSize*sqpack.MaxDataSpans)
	spanDigestRegion := dataSpan[sqpack.SqDataHeaderSize+sqpack.SqpackHeaderSize:]
	desc := sqpack.DataFileDescriptor{Sha1: sqpack.Sha1(spanDigestRegion)}
	encodedDesc, err := desc.MarshalBinary()
	require.NoError(t, err)
	copy(dataFilesSegment[0:sqpack.DataFileDescriptorSize], encodedDesc)

	fsEntry := sqpack.FileSegmentEntry{NameHash: ps.NameHash, PathHash: ps.PathHash, DatFile: locator}
	fsEntryBytes, err := fsEntry.MarshalBinary()
	require.NoError(t, err)

	indexBytes := buildIndexFile(t, sqpack.IndexTypeIndex, fsEntryBytes, dataFilesSegment, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.win32.index"), indexBytes, 0o644))

	fs2Entry := sqpack.FileSegmentEntry2{FullPathHash: ps.FullPathHash, DatFile: locator}
	fs2EntryBytes, err := fs2Entry.MarshalBinary()
	require.NoError(t, err)

	index2Bytes := buildIndexFile(t, sqpack.IndexTypeIndex2, fs2EntryBytes, dataFilesSegment, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.win32.index2"), index2Bytes, 0o644))

	return filepath.Join(dir, "test.win32.index")
}

func buildEmptyEntryBytes(t *testing.T) []byte {
	t.Helper()
	hdr := sqpack.FileEntryHeader{HeaderSize: sqpack.FileEntryHeaderSize, Type: uint32(sqpack.FileEntryTypeEmpty)}
	encoded, err := hdr.MarshalBinary()
	require.NoError(t, err)
	out := make([]byte, sqpack.EmptyEntrySize)
	copy(out, encoded)
	return out
}

func buildDataSpan(t *testing.T, spanIndex uint32, entries []byte) []byte {
	t.Helper()

	alloc, pad := sqpack.Align(uint64(len(entries)), sqpack.EntryAlignment)
	body := make([]byte, 0, alloc)
	body = append(body, entries...)
	body = append(body, make([]byte, pad)...)

	sub := sqpack.NewSqDataHeader(spanIndex, 0x77359400)
	require.NoError(t, sub.SetDataSize(uint64(len(body))))
	sub.DataSha1 = sqpack.Sha1(body)

	subBytes, err := sub.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, subBytes, sqpack.SqDataHeaderSize)
	sha1 := sqpack.Sha1(subBytes[:sqpack.ShaCoveredRegionEnd])
	sub.Sha1 = sha1
	subBytes, err = sub.MarshalBinary()
	require.NoError(t, err)

	top := sqpack.NewSqpackHeader(sqpack.SqpackTypeSqData, 0, 0)
	topBytes, err := top.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, topBytes, sqpack.SqpackHeaderSize)
	top.Sha1 = sqpack.Sha1(topBytes[:sqpack.ShaCoveredRegionEnd])
	topBytes, err = top.MarshalBinary()
	require.NoError(t, err)

	out := make([]byte, 0, len(topBytes)+len(subBytes)+len(body))
	out = append(out, topBytes...)
	out = append(out, subBytes...)
	out = append(out, body...)
	return out
}

// buildIndexFile lays out a top SqpackHeader, a SqIndexHeader, and the
// four segments back to back starting at offset 2048, filling every
// descriptor's Offset/Size/Sha1.
func buildIndexFile(t *testing.T, kind sqpack.IndexType, fileSegment, dataFilesSegment, unknown3Segment, folderSegment []byte) []byte {
	t.Helper()

	segments := [][]byte{fileSegment, dataFilesSegment, unknown3Segment, folderSegment}
	cursor := uint32(sqpack.SqpackHeaderSize + sqpack.SqIndexHeaderSize)
	descriptors := make([]sqpack.SegmentDescriptor, len(segments))
	for i, seg := range segments {
		descriptors[i] = sqpack.SegmentDescriptor{
			Count:  uint32(len(seg)),
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
	require.NoError(t, err)
	require.Len(t, subBytes, sqpack.SqIndexHeaderSize)
	sub.Sha1 = sqpack.Sha1(subBytes[:sqpack.ShaCoveredRegionEnd])
	subBytes, err = sub.MarshalBinary()
	require.NoError(t, err)

	top := sqpack.NewSqpackHeader(sqpack.SqpackTypeSqIndex, 0, 0)
	topBytes, err := top.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, topBytes, sqpack.SqpackHeaderSize)
	top.Sha1 = sqpack.Sha1(topBytes[:sqpack.ShaCoveredRegionEnd])
	topBytes, err = top.MarshalBinary()
	require.NoError(t, err)

	out := make([]byte, 0, int(cursor))
	out = append(out, topBytes...)
	out = append(out, subBytes...)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}

func TestReaderOpenParsesEntryAndCrossReferencesHashes(t *testing.T) {
	dir := t.TempDir()
	ps := sqpack.NewPathSpec("test/path.bin")
	indexPath := fixtureTriplet(t, dir, ps)

	r, err := Open(indexPath, logrus.StandardLogger())
	require.NoError(t, err)
	defer r.Close()

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ps.PathHash, entries[0].PathSpec.PathHash)
	assert.Equal(t, ps.NameHash, entries[0].PathSpec.NameHash)
	assert.Equal(t, ps.FullPathHash, entries[0].PathSpec.FullPathHash)

	assert.Equal(t, 1, r.SpanCount())
}

func TestReaderEntrySizeForEmptyEntry(t *testing.T) {
	dir := t.TempDir()
	ps := sqpack.NewPathSpec("test/path.bin")
	indexPath := fixtureTriplet(t, dir, ps)

	r, err := Open(indexPath, logrus.StandardLogger())
	require.NoError(t, err)
	defer r.Close()

	kind, size, err := r.EntrySize(r.Entries()[0].Locator)
	require.NoError(t, err)
	assert.Equal(t, sqpack.FileEntryTypeEmpty, kind)
	assert.EqualValues(t, sqpack.EmptyEntrySize, size)
}

func TestReaderProviderBuildsPassthrough(t *testing.T) {
	dir := t.TempDir()
	ps := sqpack.NewPathSpec("test/path.bin")
	indexPath := fixtureTriplet(t, dir, ps)

	r, err := Open(indexPath, logrus.StandardLogger())
	require.NoError(t, err)
	defer r.Close()

	p, err := r.Provider(r.Entries()[0])
	require.NoError(t, err)
	assert.EqualValues(t, sqpack.EmptyEntrySize, p.Size())
	assert.Equal(t, sqpack.FileEntryTypeEmpty, p.Kind())
}

func TestReaderOpenRejectsWrongSuffix(t *testing.T) {
	_, err := Open("/tmp/nonexistent.bin", logrus.StandardLogger())
	require.Error(t, err)
}

func TestSortedByLocatorOrdersAscending(t *testing.T) {
	entries := []DirectoryEntry{
		{Locator: sqpack.NewDataLocator(0, 16)},
		{Locator: sqpack.NewDataLocator(0, 0)},
	}
	sorted := sortedByLocator(entries)
	assert.True(t, sorted[0].Locator < sorted[1].Locator)
}
