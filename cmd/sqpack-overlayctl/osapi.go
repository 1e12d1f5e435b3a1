/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package main

import (
	"io"
	"os"

	"github.com/sqpack-overlay/engine/pkg/intercept"
)

// osFileAPI is the CLI's own FileAPI: a thin passthrough to the real
// filesystem, standing in for the host-supplied implementation a game
// process would wire Hooks in front of. The CLI never installs Hooks,
// but engine.New still requires an OSAPI to construct one.
type osFileAPI struct{}

func (osFileAPI) Open(path string, readOnly, openExisting, hasTemplate bool) (intercept.OSHandle, error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR
	}
	return os.OpenFile(path, flag, 0o644)
}

func (osFileAPI) Close(h intercept.OSHandle) error {
	return h.(*os.File).Close()
}

func (osFileAPI) Read(h intercept.OSHandle, buf []byte, offset int64, useOffset bool) (int, error) {
	f := h.(*os.File)
	if useOffset {
		return f.ReadAt(buf, offset)
	}
	n, err := f.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (osFileAPI) Seek(h intercept.OSHandle, distance int64, mode intercept.SeekMode) (int64, error) {
	var whence int
	switch mode {
	case intercept.SeekFromBegin:
		whence = io.SeekStart
	case intercept.SeekFromCurrent:
		whence = io.SeekCurrent
	case intercept.SeekFromEnd:
		whence = io.SeekEnd
	}
	return h.(*os.File).Seek(distance, whence)
}
