/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStreamReadPartial(t *testing.T) {
	m := NewMemoryStream("test", []byte("hello world"))
	buf := make([]byte, 5)
	n, err := m.ReadPartial(6, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestZeroStreamReadsZeroes(t *testing.T) {
	z := NewZeroStream(16)
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = 0xFF
	}
	n, err := z.ReadPartial(4, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestFileStreamReadPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, err := OpenFileStream(path)
	require.NoError(t, err)
	defer f.Close()

	assert.EqualValues(t, 10, f.Size())
	buf := make([]byte, 4)
	n, err := f.ReadPartial(3, buf)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))
}

func TestCompositeStreamStitchesRanges(t *testing.T) {
	a := NewMemoryStream("a", []byte("AAAA"))
	b := NewMemoryStream("b", []byte("BBBB"))
	c := NewCompositeStream("ab", []Range{
		{Offset: 0, Stream: a},
		{Offset: 4, Stream: b},
	}, 8)

	buf := make([]byte, 8)
	n, err := c.ReadPartial(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "AAAABBBB", string(buf))
}

func TestCompositeStreamCrossBoundaryRead(t *testing.T) {
	a := NewMemoryStream("a", []byte("AAAA"))
	b := NewMemoryStream("b", []byte("BBBB"))
	c := NewCompositeStream("ab", []Range{
		{Offset: 0, Stream: a},
		{Offset: 4, Stream: b},
	}, 8)

	buf := make([]byte, 4)
	n, err := c.ReadPartial(2, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "AABB", string(buf))
}

func TestCompositeStreamFillsGapsWithZero(t *testing.T) {
	a := NewMemoryStream("a", []byte("AA"))
	c := NewCompositeStream("padded", []Range{
		{Offset: 0, Stream: a},
	}, 6)

	buf := make([]byte, 6)
	n, err := c.ReadPartial(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{'A', 'A', 0, 0, 0, 0}, buf)
}

func TestReadAll(t *testing.T) {
	m := NewMemoryStream("test", []byte("content"))
	data, err := ReadAll(m)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
