/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package stream

import "fmt"

// MemoryStream is a RandomAccessStream backed by an in-memory buffer: used
// for index segments (small, built eagerly at freeze time) and for
// already-compressed provider payloads.
type MemoryStream struct {
	label string
	data  []byte
}

// NewMemoryStream wraps data as a RandomAccessStream. data is not copied;
// callers must not mutate it afterwards.
func NewMemoryStream(label string, data []byte) *MemoryStream {
	return &MemoryStream{label: label, data: data}
}

func (m *MemoryStream) Size() int64 { return int64(len(m.data)) }

func (m *MemoryStream) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset > int64(len(m.data)) {
		return 0, nil
	}
	n := copy(buf, m.data[offset:])
	return n, nil
}

func (m *MemoryStream) DescribeState() string {
	return fmt.Sprintf("memory(%s, %d bytes)", m.label, len(m.data))
}
