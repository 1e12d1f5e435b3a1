/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package ttmp

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// Writer accumulates a TTMP pack in memory and commits both halves to
// disk atomically in one shot. Append is safe for concurrent callers —
// the Background Builder's worker pool calls it from many goroutines,
// serialized by writerMu exactly as spec.md §4.7's "single writer mutex
// serializes append" describes.
type Writer struct {
	writerMu sync.Mutex
	data     bytes.Buffer
	entries  []Entry
}

// NewWriter returns an empty pack builder.
func NewWriter() *Writer {
	return &Writer{}
}

// Append adds one entry's already-archive-encoded payload to the pack,
// recording its offset and size in the manifest.
func (w *Writer) Append(fullPath string, datFile string, payload []byte) {
	w.writerMu.Lock()
	defer w.writerMu.Unlock()

	offset := uint64(w.data.Len())
	w.data.Write(payload)
	w.entries = append(w.entries, Entry{
		FullPath:  fullPath,
		ModOffset: offset,
		ModSize:   uint64(len(payload)),
		DatFile:   datFile,
	})
}

// Len reports how many entries have been appended so far.
func (w *Writer) Len() int {
	w.writerMu.Lock()
	defer w.writerMu.Unlock()
	return len(w.entries)
}

// Abort discards everything accumulated so far without touching disk —
// since nothing is written until Commit, cancellation needs no cleanup
// beyond letting the Writer be garbage collected.
func (w *Writer) Abort() {
	w.writerMu.Lock()
	w.data.Reset()
	w.entries = nil
	w.writerMu.Unlock()
}

// Commit atomically writes TTMPL.mpl and TTMPD.mpd under dir. Both files
// are replaced in one rename each (natefinch/atomic), so a reader never
// observes a manifest without its matching data file.
func (w *Writer) Commit(dir string) error {
	w.writerMu.Lock()
	defer w.writerMu.Unlock()

	manifest := &bytes.Buffer{}
	enc := json.NewEncoder(manifest)
	for _, e := range w.entries {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(err, "ttmp writer: encode manifest entry")
		}
	}

	if err := atomic.WriteFile(filepath.Join(dir, DataFileName), bytes.NewReader(w.data.Bytes())); err != nil {
		return errors.Wrap(err, "ttmp writer: write data file")
	}
	if err := atomic.WriteFile(filepath.Join(dir, ManifestFileName), manifest); err != nil {
		return errors.Wrap(err, "ttmp writer: write manifest")
	}
	return nil
}
