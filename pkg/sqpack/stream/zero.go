/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package stream

import "fmt"

// ZeroStream is a RandomAccessStream of a fixed size that reads back as
// all zero bytes. freeze() does not use it for alignment padding;
// CompositeStream zero-fills any gap between its ranges itself.
type ZeroStream struct {
	size int64
}

func NewZeroStream(size int64) *ZeroStream {
	return &ZeroStream{size: size}
}

func (z *ZeroStream) Size() int64 { return z.size }

func (z *ZeroStream) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= z.size {
		return 0, nil
	}
	n := int64(len(buf))
	if remaining := z.size - offset; n > remaining {
		n = remaining
	}
	for i := int64(0); i < n; i++ {
		buf[i] = 0
	}
	return int(n), nil
}

func (z *ZeroStream) DescribeState() string {
	return fmt.Sprintf("zero(%d bytes)", z.size)
}
