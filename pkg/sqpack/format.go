/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package sqpack holds the bit-exact binary primitives of the SqPack
// archive format: headers, segment descriptors, data locators, alignment,
// and path hashing. Everything here is leaf-level: no I/O, no overlay
// policy, just wire structures and their encode/decode.
package sqpack

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
)

// EntryAlignment is the byte alignment every entry's compressed payload
// is padded to within a data span (spec.md invariant I3).
const EntryAlignment = 128

// Align rounds value up to the next multiple of by, returning the
// allocated size and the padding that was added.
func Align(value uint64, by uint64) (alloc uint64, pad uint64) {
	if by == 0 {
		by = EntryAlignment
	}
	count := (value + by - 1) / by
	alloc = count * by
	pad = alloc - value
	return alloc, pad
}

// SqpackType tags which of the three files in a triplet a header belongs to.
type SqpackType uint32

const (
	SqpackTypeUnspecified SqpackType = 0xFFFFFFFF
	SqpackTypeSqDatabase  SqpackType = 0
	SqpackTypeSqData      SqpackType = 1
	SqpackTypeSqIndex     SqpackType = 2
)

var sqpackSignature = [12]byte{'S', 'q', 'P', 'a', 'c', 'k', 0, 0, 0, 0, 0, 0}

// SqpackHeader is the common 1024-byte header every .index/.index2/.dat
// file begins with.
type SqpackHeader struct {
	Signature  [12]byte
	HeaderSize uint32
	Unknown1   uint32
	Type       uint32
	YYYYMMDD   uint32
	Time       uint32
	Unknown2   uint32
	_          [0x3c0 - 0x24]byte
	Sha1       [20]byte
	_          [0x2c]byte
}

const SqpackHeaderSize = 1024

// NewSqpackHeader returns a header with the fields freeze() is responsible
// for, leaving Sha1 for the caller to compute once the rest is final.
func NewSqpackHeader(typ SqpackType, yyyymmdd, timeOfDay uint32) SqpackHeader {
	h := SqpackHeader{
		Signature:  sqpackSignature,
		HeaderSize: SqpackHeaderSize,
		Unknown1:   1,
		Type:       uint32(typ),
		YYYYMMDD:   yyyymmdd,
		Time:       timeOfDay,
		Unknown2:   0xFFFFFFFF,
	}
	return h
}

// MarshalBinary encodes the header field by field in wire order, without
// relying on Go's own struct layout.
func (h *SqpackHeader) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a header from its 1024-byte wire form.
func (h *SqpackHeader) UnmarshalBinary(data []byte) error {
	if len(data) < SqpackHeaderSize {
		return errors.New("sqpack header: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:SqpackHeaderSize]), binary.LittleEndian, h)
}

// Verify checks the structural fields: signature and declared type.
func (h *SqpackHeader) Verify(expected SqpackType) error {
	if h.Signature != sqpackSignature {
		return errors.Wrap(errdefs.ErrCorruptArchive, "sqpack header: bad signature")
	}
	if SqpackType(h.Type) != expected {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack header: expected type %d, got %d", expected, h.Type)
	}
	return nil
}

// SegmentDescriptor is the 0x48-byte descriptor naming one of the index
// file's four segments: its entry count, byte offset, byte length, and the
// SHA-1 of its contents.
type SegmentDescriptor struct {
	Count  uint32
	Offset uint32
	Size   uint32
	Sha1   [20]byte
	_      [0x28]byte
}

const SegmentDescriptorSize = 0x48

// IndexType distinguishes the .index (two-hash) and .index2 (one-hash)
// shells, which otherwise share the same sub-header shape.
type IndexType uint32

const (
	IndexTypeUnspecified IndexType = 0xFFFFFFFF
	IndexTypeIndex       IndexType = 0
	IndexTypeIndex2      IndexType = 2
)

// SqIndexHeader is the index sub-header following the common SqpackHeader,
// naming the File, DataFiles, Unknown3 and Folder segments.
type SqIndexHeader struct {
	HeaderSize      uint32
	FileSegment     SegmentDescriptor
	_               [4]byte
	DataFilesSegment SegmentDescriptor
	UnknownSegment3 SegmentDescriptor
	FolderSegment   SegmentDescriptor
	_               [4]byte
	Type            uint32
	_               [0x3c0 - 0x130]byte
	Sha1            [20]byte
	_               [0x2c]byte
}

const SqIndexHeaderSize = 1024

// ShaCoveredRegionEnd is the offset through which the sub-header's own
// SHA-1 digest is computed, per spec.md §4.4.
const ShaCoveredRegionEnd = 0x3c0

func (h *SqIndexHeader) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *SqIndexHeader) UnmarshalBinary(data []byte) error {
	if len(data) < SqIndexHeaderSize {
		return errors.New("sqindex header: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:SqIndexHeaderSize]), binary.LittleEndian, h)
}

func (h *SqIndexHeader) Verify(expected IndexType) error {
	if IndexType(h.Type) != expected {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "sqindex header: expected index type %d, got %d", expected, h.Type)
	}
	if h.DataFilesSegment.Size != 0x100 {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "sqindex header: data files segment size must be 256, got %d", h.DataFilesSegment.Size)
	}
	return nil
}

// MaxDataSpans is the hard ceiling on data spans per archive (spec.md §3:
// DataLocator's span index component is 4 bits).
const MaxDataSpans = 8

// DataFileDescriptor is one fixed-size record within the index's
// DataFilesSegment, naming a single data span's content SHA-1. The
// segment always reserves MaxDataSpans slots (256 bytes total) even
// when fewer spans exist; unused slots are zero.
type DataFileDescriptor struct {
	Sha1 [20]byte
	_    [12]byte
}

const DataFileDescriptorSize = 32

func (d *DataFileDescriptor) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DataFileDescriptor) UnmarshalBinary(data []byte) error {
	if len(data) < DataFileDescriptorSize {
		return errors.New("data file descriptor: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:DataFileDescriptorSize]), binary.LittleEndian, d)
}

// DataLocator packs (span_index, offset/8) into the 32-bit form the index
// segments use to address data spans, per spec.md §6.
type DataLocator uint32

// NewDataLocator packs a span index and byte offset into a DataLocator.
// offset must be a multiple of 128: at that alignment offset/8 already
// occupies bits 4-31 without an extra shift, leaving bits 0-3 free for
// spanIndex*2, matching the original LEDataLocator's packing.
func NewDataLocator(spanIndex uint32, offset uint64) DataLocator {
	return DataLocator((spanIndex * 2) | uint32(offset/8))
}

// SpanIndex returns the data span this locator addresses.
func (d DataLocator) SpanIndex() uint32 {
	return (uint32(d) & 0xF) / 2
}

// Offset returns the byte offset this locator addresses, measured from
// the start of the data span's file (its two 1024-byte headers included,
// not from the start of the post-header entry region). The first entry
// in a span therefore sits at DataSpanHeaderSize at the earliest. This
// masks off the low 4 bits rather than shifting, matching the original
// LEDataLocator::Offset()'s `(Value() & 0xFFFFFFF0) * 8`.
func (d DataLocator) Offset() uint64 {
	return uint64(uint32(d)&0xFFFFFFF0) * 8
}

// DataSpanHeaderSize is the combined byte size of a data span's
// SqpackHeader and SqDataHeader, i.e. the lowest valid DataLocator offset.
const DataSpanHeaderSize = SqpackHeaderSize + SqDataHeaderSize

// FileSegmentEntry is one record of the .index FileSegment: the two-hash
// lookup key plus the locator of the entry's data.
type FileSegmentEntry struct {
	NameHash uint32
	PathHash uint32
	DatFile  DataLocator
	Padding  uint32
}

const FileSegmentEntrySize = 16

func (e *FileSegmentEntry) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *FileSegmentEntry) UnmarshalBinary(data []byte) error {
	if len(data) < FileSegmentEntrySize {
		return errors.New("file segment entry: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:FileSegmentEntrySize]), binary.LittleEndian, e)
}

// FileSegmentEntry2 is one record of the .index2 FileSegment: the
// single-hash lookup key plus the locator of the entry's data.
type FileSegmentEntry2 struct {
	FullPathHash uint32
	DatFile      DataLocator
}

const FileSegmentEntry2Size = 8

func (e *FileSegmentEntry2) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *FileSegmentEntry2) UnmarshalBinary(data []byte) error {
	if len(data) < FileSegmentEntry2Size {
		return errors.New("file segment entry2: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:FileSegmentEntry2Size]), binary.LittleEndian, e)
}

// Unknown3Entry is one opaque record of the index's third segment,
// preserved bitwise from the source archive without interpretation.
type Unknown3Entry struct {
	Unknown1 uint32
	Unknown2 uint32
	Unknown3 uint32
	Unknown4 uint32
}

const Unknown3EntrySize = 16

func (e *Unknown3Entry) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Unknown3Entry) UnmarshalBinary(data []byte) error {
	if len(data) < Unknown3EntrySize {
		return errors.New("unknown3 entry: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:Unknown3EntrySize]), binary.LittleEndian, e)
}

// FolderSegmentEntry is one record of the .index FolderSegment: a parent
// directory's name hash and the byte range of its files within FileSegment.
type FolderSegmentEntry struct {
	NameHash          uint32
	FileSegmentOffset uint32
	FileSegmentSize   uint32
	Padding           uint32
}

const FolderSegmentEntrySize = 16

func (e *FolderSegmentEntry) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *FolderSegmentEntry) UnmarshalBinary(data []byte) error {
	if len(data) < FolderSegmentEntrySize {
		return errors.New("folder segment entry: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:FolderSegmentEntrySize]), binary.LittleEndian, e)
}

func (e *FolderSegmentEntry) Verify() error {
	if e.FileSegmentSize%FileSegmentEntrySize != 0 {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "folder segment entry: size %d is not a multiple of %d", e.FileSegmentSize, FileSegmentEntrySize)
	}
	return nil
}

// SqDataHeader is the 1024-byte header that begins every .dat data span.
type SqDataHeader struct {
	HeaderSize   uint32
	Null1        uint32
	Unknown1     uint32
	DataSizeDiv  uint32 // DataSize / EntryAlignment
	SpanIndex    uint32
	Null2        uint32
	MaxFileSize  uint64
	DataSha1     [20]byte
	_            [0x3c0 - 0x34]byte
	Sha1         [20]byte
	_            [0x2c]byte
}

const SqDataHeaderSize = 1024
const sqDataUnknown1Value = 0x10

// DataSize returns the post-header byte count the span holds.
func (h *SqDataHeader) DataSize() uint64 {
	return uint64(h.DataSizeDiv) * EntryAlignment
}

// SetDataSize stores the post-header byte count; it must be a multiple of
// EntryAlignment.
func (h *SqDataHeader) SetDataSize(size uint64) error {
	if size%EntryAlignment != 0 {
		return errors.New("sqdata header: data size must be a multiple of 128")
	}
	h.DataSizeDiv = uint32(size / EntryAlignment)
	return nil
}

// NewSqDataHeader returns a span header with the fields freeze() owns,
// leaving DataSha1/Sha1 for the caller to fill in once the span is final.
func NewSqDataHeader(spanIndex uint32, maxFileSize uint64) SqDataHeader {
	return SqDataHeader{
		HeaderSize:  SqDataHeaderSize,
		Unknown1:    sqDataUnknown1Value,
		SpanIndex:   spanIndex,
		MaxFileSize: maxFileSize,
	}
}

func (h *SqDataHeader) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *SqDataHeader) UnmarshalBinary(data []byte) error {
	if len(data) < SqDataHeaderSize {
		return errors.New("sqdata header: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:SqDataHeaderSize]), binary.LittleEndian, h)
}

// Verify checks the span's own declared index against the index the
// caller expected to find at this position in the data span list.
func (h *SqDataHeader) Verify(expectedSpanIndex uint32) error {
	if h.SpanIndex != expectedSpanIndex {
		return errors.Wrapf(errdefs.ErrCorruptArchive, "sqdata header: expected span index %d, got %d", expectedSpanIndex, h.SpanIndex)
	}
	return nil
}

// FileEntryType tags the structural shape of an entry's compressed payload.
type FileEntryType uint32

const (
	FileEntryTypeEmpty   FileEntryType = 1
	FileEntryTypeBinary  FileEntryType = 2
	FileEntryTypeModel   FileEntryType = 3
	FileEntryTypeTexture FileEntryType = 4
)

// EmptyEntrySize is the sentinel byte size of an Empty entry provider,
// per spec.md §3.
const EmptyEntrySize = 128

// BlockHeaderLocator addresses one compressed block within a Binary entry.
type BlockHeaderLocator struct {
	Offset               uint32
	BlockSize            uint16
	DecompressedDataSize uint16
}

const BlockHeaderLocatorSize = 8

func (l *BlockHeaderLocator) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *BlockHeaderLocator) UnmarshalBinary(data []byte) error {
	if len(data) < BlockHeaderLocatorSize {
		return errors.New("block header locator: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:BlockHeaderLocatorSize]), binary.LittleEndian, l)
}

// BlockHeader precedes each compressed block's bytes.
type BlockHeader struct {
	HeaderSize       uint32
	Version          uint32
	CompressedSize   uint32
	DecompressedSize uint32
}

const BlockHeaderSize = 16

// CompressedSizeNotCompressed is the CompressedSize sentinel meaning the
// block that follows is stored raw.
const CompressedSizeNotCompressed = 32000

func (h *BlockHeader) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *BlockHeader) UnmarshalBinary(data []byte) error {
	if len(data) < BlockHeaderSize {
		return errors.New("block header: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:BlockHeaderSize]), binary.LittleEndian, h)
}

// FileEntryHeader precedes every entry's blocks within a data span.
type FileEntryHeader struct {
	HeaderSize          uint32
	Type                uint32
	DecompressedSize    uint32
	Unknown1            uint32
	BlockBufferSize     uint32
	BlockCountOrVersion uint32
}

const FileEntryHeaderSize = 24

func (h *FileEntryHeader) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *FileEntryHeader) UnmarshalBinary(data []byte) error {
	if len(data) < FileEntryHeaderSize {
		return errors.New("file entry header: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:FileEntryHeaderSize]), binary.LittleEndian, h)
}

// TextureBlockHeaderLocator addresses the mipmap block run of a Texture
// entry.
type TextureBlockHeaderLocator struct {
	FirstBlockOffset   uint32
	TotalSize          uint32
	DecompressedSize   uint32
	FirstSubBlockIndex uint32
	SubBlockCount      uint32
}

const TextureBlockHeaderLocatorSize = 20

func (l *TextureBlockHeaderLocator) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *TextureBlockHeaderLocator) UnmarshalBinary(data []byte) error {
	if len(data) < TextureBlockHeaderLocatorSize {
		return errors.New("texture block header locator: short buffer")
	}
	return binary.Read(bytes.NewReader(data[:TextureBlockHeaderLocatorSize]), binary.LittleEndian, l)
}

