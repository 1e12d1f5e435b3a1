/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package stream

import (
	"fmt"
	"sort"
)

// Range places one RandomAccessStream at a fixed byte offset within a
// CompositeStream.
type Range struct {
	Offset int64
	Stream RandomAccessStream
}

// CompositeStream stitches byte ranges from heterogeneous providers into
// one contiguous RandomAccessStream, on demand, with no copying until a
// reader actually calls ReadPartial. This is the View Assembler's core
// tool for laying out a data span's entries without materializing them.
type CompositeStream struct {
	label  string
	ranges []Range
	size   int64
}

// NewCompositeStream builds a composite from ranges, which need not be
// given in offset order. Ranges must not overlap.
func NewCompositeStream(label string, ranges []Range, totalSize int64) *CompositeStream {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	return &CompositeStream{label: label, ranges: sorted, size: totalSize}
}

func (c *CompositeStream) Size() int64 { return c.size }

func (c *CompositeStream) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= c.size || len(buf) == 0 {
		return 0, nil
	}

	want := int64(len(buf))
	if remaining := c.size - offset; want > remaining {
		want = remaining
	}

	total := 0
	cursor := offset
	end := offset + want

	idx := sort.Search(len(c.ranges), func(i int) bool {
		r := c.ranges[i]
		return r.Offset+r.Stream.Size() > offset
	})

	for cursor < end {
		if idx >= len(c.ranges) || c.ranges[idx].Offset > cursor {
			// Gap between ranges: the assembler never leaves semantic
			// gaps, but treat any as zero-filled padding rather than
			// erroring mid-read.
			gapEnd := end
			if idx < len(c.ranges) && c.ranges[idx].Offset < gapEnd {
				gapEnd = c.ranges[idx].Offset
			}
			n := int(gapEnd - cursor)
			for i := 0; i < n; i++ {
				buf[total+i] = 0
			}
			total += n
			cursor = gapEnd
			continue
		}

		r := c.ranges[idx]
		localOffset := cursor - r.Offset
		want := end - cursor
		if remaining := r.Stream.Size() - localOffset; want > remaining {
			want = remaining
		}
		n, err := r.Stream.ReadPartial(localOffset, buf[total:total+int(want)])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
		cursor += int64(n)
		if int64(n) < want {
			break
		}
		idx++
	}

	return total, nil
}

func (c *CompositeStream) DescribeState() string {
	return fmt.Sprintf("composite(%s, %d ranges, %d bytes)", c.label, len(c.ranges), c.size)
}
