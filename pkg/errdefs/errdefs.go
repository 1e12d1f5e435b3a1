/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs defines the error kinds the overlay engine surfaces, per
// the taxonomy the engine's hook layer and overlay sources translate into
// host error codes or log-and-skip recovery.
package errdefs

import (
	"github.com/pkg/errors"
)

var (
	// ErrCorruptArchive means a header or SHA-1 mismatch, or another
	// structural violation, was found in an on-disk SqPack triplet.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrOverlaySource means a malformed TTMP pack or unreadable loose
	// file was encountered while applying an overlay.
	ErrOverlaySource = errors.New("overlay source error")

	// ErrDuplicatePathSpec means two entries collided on one key form
	// of a PathSpec but disagreed on the other.
	ErrDuplicatePathSpec = errors.New("duplicate path spec")

	// ErrOutOfRangePathType means a requested data span index is beyond
	// the number of spans the views actually hold.
	ErrOutOfRangePathType = errors.New("out of range path type")

	// ErrCancelledByUser means a background build was cancelled through
	// the Progress UI's cancel event before it finished.
	ErrCancelledByUser = errors.New("cancelled by user")

	// ErrOsIO is a catch-all for failures that must be reported back to
	// the host as an OS-level I/O error.
	ErrOsIO = errors.New("os io error")
)

// IsCorruptArchive returns true if err (or a wrapped cause) is ErrCorruptArchive.
func IsCorruptArchive(err error) bool { return errors.Is(err, ErrCorruptArchive) }

// IsOverlaySource returns true if err (or a wrapped cause) is ErrOverlaySource.
func IsOverlaySource(err error) bool { return errors.Is(err, ErrOverlaySource) }

// IsDuplicatePathSpec returns true if err (or a wrapped cause) is ErrDuplicatePathSpec.
func IsDuplicatePathSpec(err error) bool { return errors.Is(err, ErrDuplicatePathSpec) }

// IsOutOfRangePathType returns true if err (or a wrapped cause) is ErrOutOfRangePathType.
func IsOutOfRangePathType(err error) bool { return errors.Is(err, ErrOutOfRangePathType) }

// IsCancelledByUser returns true if err (or a wrapped cause) is ErrCancelledByUser.
func IsCancelledByUser(err error) bool { return errors.Is(err, ErrCancelledByUser) }

// IsOsIO returns true if err (or a wrapped cause) is ErrOsIO.
func IsOsIO(err error) bool { return errors.Is(err, ErrOsIO) }

// Windows error codes the hook surface's SetLastError call understands.
// Values match the host platform's own winerror.h constants; a reworked
// hook surface on another platform would translate these at its own
// boundary instead.
const (
	ErrorCRC             = 23   // cyclic redundancy check: ErrCorruptArchive
	ErrorReadFault       = 30   // generic read fault: the catch-all
	ErrorInvalidData     = 13   // malformed overlay source content
	ErrorSeek            = 25   // out-of-range data span index
	ErrorOperationAborted = 995 // background build cancelled
)

// ToOSError maps a sentinel error (or a wrapped cause) to the Windows
// error code a hook installs via SetLastError before returning failure
// to the caller. ok is false when err doesn't match a known sentinel,
// in which case the caller falls back to ERROR_READ_FAULT per spec.md
// §7's "any other exception maps to ERROR_READ_FAULT".
func ToOSError(err error) (code int, ok bool) {
	switch {
	case IsCorruptArchive(err):
		return ErrorCRC, true
	case IsOverlaySource(err):
		return ErrorInvalidData, true
	case IsDuplicatePathSpec(err):
		return ErrorInvalidData, true
	case IsOutOfRangePathType(err):
		return ErrorSeek, true
	case IsCancelledByUser(err):
		return ErrorOperationAborted, true
	case IsOsIO(err):
		return ErrorReadFault, true
	default:
		return 0, false
	}
}
