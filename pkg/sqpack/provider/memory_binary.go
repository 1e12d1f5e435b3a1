/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package provider

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

// maxBlockDecompressedSize bounds how much of the source payload goes
// into a single compressed block, matching the archive's own block
// granularity so a passthrough consumer can't tell an in-memory
// provider's blocks apart from a real one's.
const maxBlockDecompressedSize = 16000

// MemoryBinaryProvider serves arbitrary bytes supplied by an overlay
// source (an Excel merge result, a TTMP payload, a loose file) laid out
// as a structurally valid Binary entry: a FileEntryHeader, a
// BlockHeaderLocator table, and a run of compressed blocks, padded to
// EntryAlignment.
type MemoryBinaryProvider struct {
	pathSpec sqpack.PathSpec
	blob     []byte
}

// NewMemoryBinaryProvider compresses data into a Binary entry's on-disk
// shape. Each block is flate-compressed independently; a block that
// doesn't shrink is stored raw with the CompressedSizeNotCompressed
// sentinel, exactly like the archive's own encoder does for
// incompressible spans.
func NewMemoryBinaryProvider(pathSpec sqpack.PathSpec, data []byte) (*MemoryBinaryProvider, error) {
	blockCount := (len(data) + maxBlockDecompressedSize - 1) / maxBlockDecompressedSize
	if blockCount == 0 {
		blockCount = 1
	}

	type builtBlock struct {
		header  sqpack.BlockHeader
		payload []byte
		padding int
	}
	blocks := make([]builtBlock, 0, blockCount)

	for off := 0; off < len(data) || len(blocks) == 0; off += maxBlockDecompressedSize {
		end := off + maxBlockDecompressedSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		compressed, err := deflate(chunk)
		if err != nil {
			return nil, errors.Wrap(err, "memory binary provider: compress block")
		}

		payload := compressed
		compressedSize := uint32(len(compressed))
		if len(compressed) >= len(chunk) {
			payload = chunk
			compressedSize = sqpack.CompressedSizeNotCompressed
		}

		total := sqpack.BlockHeaderSize + len(payload)
		_, pad := sqpack.Align(uint64(total), 4)

		blocks = append(blocks, builtBlock{
			header: sqpack.BlockHeader{
				HeaderSize:       sqpack.BlockHeaderSize,
				Version:          0,
				CompressedSize:   compressedSize,
				DecompressedSize: uint32(len(chunk)),
			},
			payload: payload,
			padding: int(pad),
		})

		if end == len(data) {
			break
		}
	}

	locators := make([]sqpack.BlockHeaderLocator, len(blocks))
	cursor := uint32(0)
	for i, b := range blocks {
		blockSize := uint16(sqpack.BlockHeaderSize + len(b.payload) + b.padding)
		locators[i] = sqpack.BlockHeaderLocator{
			Offset:               cursor,
			BlockSize:            blockSize,
			DecompressedDataSize: uint16(b.header.DecompressedSize),
		}
		cursor += uint32(blockSize)
	}

	entryHeader := sqpack.FileEntryHeader{
		HeaderSize:          sqpack.FileEntryHeaderSize,
		Type:                uint32(sqpack.FileEntryTypeBinary),
		DecompressedSize:    uint32(len(data)),
		BlockBufferSize:     maxBlockDecompressedSize,
		BlockCountOrVersion: uint32(len(blocks)),
	}

	buf := &bytes.Buffer{}
	encodedHeader, err := entryHeader.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(encodedHeader)

	for _, l := range locators {
		encoded, err := l.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}

	for _, b := range blocks {
		encoded, err := b.header.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
		buf.Write(b.payload)
		buf.Write(make([]byte, b.padding))
	}

	alloc, pad := sqpack.Align(uint64(buf.Len()), sqpack.EntryAlignment)
	buf.Write(make([]byte, pad))
	if uint64(buf.Len()) != alloc {
		return nil, errors.Errorf("memory binary provider: alignment mismatch, got %d want %d", buf.Len(), alloc)
	}

	return &MemoryBinaryProvider{pathSpec: pathSpec, blob: buf.Bytes()}, nil
}

func deflate(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := flate.NewWriter(buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *MemoryBinaryProvider) Size() int64 { return int64(len(p.blob)) }

func (p *MemoryBinaryProvider) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(p.blob)) {
		return 0, nil
	}
	return copy(buf, p.blob[offset:]), nil
}

func (p *MemoryBinaryProvider) DescribeState() string {
	return fmt.Sprintf("memory-binary(%s, %d bytes)", p.pathSpec.OriginalPath, len(p.blob))
}

func (p *MemoryBinaryProvider) PathSpec() sqpack.PathSpec { return p.pathSpec }

func (p *MemoryBinaryProvider) Kind() sqpack.FileEntryType { return sqpack.FileEntryTypeBinary }
