/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

func readFileSegmentEntries(t *testing.T, indexStream stream.RandomAccessStream, fileSegment sqpack.SegmentDescriptor) []sqpack.FileSegmentEntry {
	t.Helper()
	raw, err := stream.ReadAll(indexStream)
	require.NoError(t, err)

	count := int(fileSegment.Size) / sqpack.FileSegmentEntrySize
	out := make([]sqpack.FileSegmentEntry, count)
	for i := range out {
		off := int(fileSegment.Offset) + i*sqpack.FileSegmentEntrySize
		require.NoError(t, out[i].UnmarshalBinary(raw[off:off+sqpack.FileSegmentEntrySize]))
	}
	return out
}

func readIndexSubHeader(t *testing.T, indexStream stream.RandomAccessStream) sqpack.SqIndexHeader {
	t.Helper()
	raw, err := stream.ReadAll(indexStream)
	require.NoError(t, err)

	var top sqpack.SqpackHeader
	require.NoError(t, top.UnmarshalBinary(raw))
	require.NoError(t, top.Verify(sqpack.SqpackTypeSqIndex))

	var sub sqpack.SqIndexHeader
	require.NoError(t, sub.UnmarshalBinary(raw[sqpack.SqpackHeaderSize:]))
	return sub
}

func TestFreezeSingleEntryProducesOneSpanAndSortedIndexes(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	ps := sqpack.NewPathSpec("common/font/font1.tex")
	_, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
	require.NoError(t, err)

	views, err := Freeze(c, FreezeOptions{})
	require.NoError(t, err)
	require.Len(t, views.Data, 1)

	sub := readIndexSubHeader(t, views.Index)
	require.NoError(t, sub.Verify(sqpack.IndexTypeIndex))
	entries := readFileSegmentEntries(t, views.Index, sub.FileSegment)
	require.Len(t, entries, 1)
	assert.Equal(t, ps.PathHash, entries[0].PathHash)
	assert.Equal(t, ps.NameHash, entries[0].NameHash)
	assert.EqualValues(t, 0, entries[0].DatFile.SpanIndex())
	assert.EqualValues(t, sqpack.DataSpanHeaderSize, entries[0].DatFile.Offset())

	dataRaw, err := stream.ReadAll(views.Data[0])
	require.NoError(t, err)
	assert.EqualValues(t, sqpack.DataSpanHeaderSize+sqpack.EmptyEntrySize, len(dataRaw))

	var dataTop sqpack.SqpackHeader
	require.NoError(t, dataTop.UnmarshalBinary(dataRaw))
	require.NoError(t, dataTop.Verify(sqpack.SqpackTypeSqData))

	var dataSub sqpack.SqDataHeader
	require.NoError(t, dataSub.UnmarshalBinary(dataRaw[sqpack.SqpackHeaderSize:]))
	require.NoError(t, dataSub.Verify(0))
	assert.EqualValues(t, sqpack.EmptyEntrySize, dataSub.DataSize())
}

func TestFreezeIndex2SortsByFullPathHash(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	paths := []string{"common/font/font1.tex", "chara/equipment/e0001/model/c0101e0001_top.mdl", "bg/ffxiv/air_a1/a.dat"}
	for _, p := range paths {
		_, err := c.AddEntry(provider.NewEmptyProvider(sqpack.NewPathSpec(p)), false)
		require.NoError(t, err)
	}

	views, err := Freeze(c, FreezeOptions{})
	require.NoError(t, err)

	raw, err := stream.ReadAll(views.Index2)
	require.NoError(t, err)

	var top sqpack.SqpackHeader
	require.NoError(t, top.UnmarshalBinary(raw))
	require.NoError(t, top.Verify(sqpack.SqpackTypeSqIndex))

	var sub sqpack.SqIndexHeader
	require.NoError(t, sub.UnmarshalBinary(raw[sqpack.SqpackHeaderSize:]))
	require.NoError(t, sub.Verify(sqpack.IndexTypeIndex2))

	count := int(sub.FileSegment.Size) / sqpack.FileSegmentEntry2Size
	require.Len(t, paths, count)

	var last uint32
	for i := 0; i < count; i++ {
		off := int(sub.FileSegment.Offset) + i*sqpack.FileSegmentEntry2Size
		var e sqpack.FileSegmentEntry2
		require.NoError(t, e.UnmarshalBinary(raw[off:off+sqpack.FileSegmentEntry2Size]))
		if i > 0 {
			assert.GreaterOrEqual(t, e.FullPathHash, last)
		}
		last = e.FullPathHash
	}
}

func TestFreezeSplitsSpansWhenMaxFileSizeExceeded(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	_, err := c.AddEntry(provider.NewEmptyProvider(sqpack.NewPathSpec("a/one.tex")), false)
	require.NoError(t, err)
	_, err = c.AddEntry(provider.NewEmptyProvider(sqpack.NewPathSpec("a/two.tex")), false)
	require.NoError(t, err)

	views, err := Freeze(c, FreezeOptions{MaxFileSize: sqpack.EmptyEntrySize})
	require.NoError(t, err)
	require.Len(t, views.Data, 2)

	for i, d := range views.Data {
		raw, err := stream.ReadAll(d)
		require.NoError(t, err)
		assert.EqualValues(t, sqpack.DataSpanHeaderSize+sqpack.EmptyEntrySize, len(raw))

		var sub sqpack.SqDataHeader
		require.NoError(t, sub.UnmarshalBinary(raw[sqpack.SqpackHeaderSize:]))
		require.NoError(t, sub.Verify(uint32(i)))
	}

	sub := readIndexSubHeader(t, views.Index)
	entries := readFileSegmentEntries(t, views.Index, sub.FileSegment)
	require.Len(t, entries, 2)
	spanIndices := map[uint32]bool{entries[0].DatFile.SpanIndex(): true, entries[1].DatFile.SpanIndex(): true}
	assert.True(t, spanIndices[0])
	assert.True(t, spanIndices[1])
}

func TestFreezeRejectsMaxFileSizeAboveCeiling(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	_, err := Freeze(c, FreezeOptions{MaxFileSize: MaxFileSizeCeiling + 1})
	assert.Error(t, err)
}

func TestFreezeFolderSegmentGroupsByParentPathHash(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	aPs := sqpack.NewPathSpec("common/font/font1.tex")
	bPs := sqpack.NewPathSpec("common/font/font2.tex")
	cPs := sqpack.NewPathSpec("bg/ffxiv/air_a1/a.dat")
	for _, ps := range []sqpack.PathSpec{aPs, bPs, cPs} {
		_, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
		require.NoError(t, err)
	}

	views, err := Freeze(c, FreezeOptions{})
	require.NoError(t, err)

	sub := readIndexSubHeader(t, views.Index)
	raw, err := stream.ReadAll(views.Index)
	require.NoError(t, err)

	count := int(sub.FolderSegment.Size) / sqpack.FolderSegmentEntrySize
	require.Equal(t, 2, count) // "common/font" and "bg/ffxiv/air_a1"

	seenHashes := map[uint32]uint32{}
	for i := 0; i < count; i++ {
		off := int(sub.FolderSegment.Offset) + i*sqpack.FolderSegmentEntrySize
		var e sqpack.FolderSegmentEntry
		require.NoError(t, e.UnmarshalBinary(raw[off:off+sqpack.FolderSegmentEntrySize]))
		require.NoError(t, e.Verify())
		seenHashes[e.NameHash] = e.FileSegmentSize
	}
	assert.EqualValues(t, 2*sqpack.FileSegmentEntrySize, seenHashes[aPs.PathHash])
	assert.EqualValues(t, sqpack.FileSegmentEntrySize, seenHashes[cPs.PathHash])
}
