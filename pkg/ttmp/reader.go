/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package ttmp

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// Pack is an opened TTMP mod pack or cache: a parsed manifest plus a
// random-access handle on its sibling data file.
type Pack struct {
	Dir     string
	entries []Entry
	data    *stream.FileStream
}

// Open reads dir's TTMPL.mpl manifest and opens its TTMPD.mpd for
// random access. Manifest lines are newline-delimited JSON objects, per
// spec.md §6.
func Open(dir string) (*Pack, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "ttmp: open manifest %s", manifestPath)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.Wrapf(err, "ttmp: malformed manifest line in %s", manifestPath)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "ttmp: read manifest %s", manifestPath)
	}

	data, err := stream.OpenFileStream(filepath.Join(dir, DataFileName))
	if err != nil {
		return nil, errors.Wrap(err, "ttmp: open data file")
	}

	return &Pack{Dir: dir, entries: entries, data: data}, nil
}

// Entries returns the pack's manifest records.
func (p *Pack) Entries() []Entry { return p.entries }

// Close releases the pack's data file handle.
func (p *Pack) Close() error { return p.data.Close() }

// Provider builds an EntryProvider serving e's payload straight out of
// the pack's data file, windowed at (ModOffset, ModSize). The entry's
// type tag is read from its own FileEntryHeader rather than trusted
// from the manifest, since the manifest doesn't carry it.
func (p *Pack) Provider(e Entry) (provider.EntryProvider, error) {
	ps := sqpack.NewPathSpec(e.FullPath)

	header := make([]byte, sqpack.FileEntryHeaderSize)
	n, err := p.data.ReadPartial(int64(e.ModOffset), header)
	if err != nil {
		return nil, errors.Wrapf(err, "ttmp: read entry header for %s", e.FullPath)
	}
	if n < sqpack.FileEntryHeaderSize {
		return nil, errors.Errorf("ttmp: entry %s shorter than a file entry header", e.FullPath)
	}

	var hdr sqpack.FileEntryHeader
	if err := hdr.UnmarshalBinary(header); err != nil {
		return nil, errors.Wrapf(err, "ttmp: decode entry header for %s", e.FullPath)
	}

	return provider.NewPassthroughFromSqPackProvider(ps, sqpack.FileEntryType(hdr.Type), p.data, int64(e.ModOffset), int64(e.ModSize)), nil
}
