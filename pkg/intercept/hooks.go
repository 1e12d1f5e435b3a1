/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package intercept

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/handle"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// ViewsAcquirer resolves the archive at indexPath to its frozen views,
// building and caching them on first call (pkg/engine.Acquire). A nil
// result with a nil error means the triplet was blacklisted: nothing
// applicable, fall through.
type ViewsAcquirer func(indexPath string) (*creator.SqpackViews, error)

// Hooks wraps a host's FileAPI, intercepting open/close/read/seek for
// paths that classify against a known SqPack triplet and routing
// everything else through unchanged.
type Hooks struct {
	baseDir       string
	osAPI         FileAPI
	table         *handle.Table
	acquireViews  ViewsAcquirer
	logger        logrus.FieldLogger

	reentryMu sync.Mutex
	reentry   map[interface{}]struct{}

	inFlight int64
}

// NewHooks wires a Hooks instance in front of osAPI, classifying paths
// under baseDir and resolving views through acquireViews.
func NewHooks(baseDir string, osAPI FileAPI, acquireViews ViewsAcquirer, logger logrus.FieldLogger) *Hooks {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hooks{
		baseDir:      baseDir,
		osAPI:        osAPI,
		table:        handle.NewTable(),
		acquireViews: acquireViews,
		logger:       logger.WithField("component", "intercept"),
		reentry:      make(map[interface{}]struct{}),
	}
}

// InFlight reports the number of hook invocations currently executing,
// for the engine's shutdown drain (spec.md §5).
func (h *Hooks) InFlight() int64 { return atomic.LoadInt64(&h.inFlight) }

// enter marks token as having an active call on this logical call
// stack. Go has no thread-local storage to key a re-entrancy guard by
// implicitly, so the host supplies token itself — normally something
// identifying its current logical request (e.g. a goroutine-scoped
// context value). enter returns false when token is already active,
// meaning this call is a re-entrant one and must forward unconditionally
// (spec.md §4.1).
func (h *Hooks) enter(token interface{}) (leave func(), reentrant bool) {
	h.reentryMu.Lock()
	if _, active := h.reentry[token]; active {
		h.reentryMu.Unlock()
		return func() {}, true
	}
	h.reentry[token] = struct{}{}
	h.reentryMu.Unlock()

	return func() {
		h.reentryMu.Lock()
		delete(h.reentry, token)
		h.reentryMu.Unlock()
	}, false
}

// Open implements the interception decision of spec.md §4.1. token
// identifies the caller's logical call stack for re-entrancy purposes.
func (h *Hooks) Open(token interface{}, path string, readOnly, openExisting, hasTemplate bool) (interface{}, error) {
	leave, reentrant := h.enter(token)
	defer leave()
	if reentrant {
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}

	atomic.AddInt64(&h.inFlight, 1)
	defer atomic.AddInt64(&h.inFlight, -1)

	if !readOnly || !openExisting || hasTemplate {
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}

	class, ok := Classify(h.baseDir, path)
	if !ok {
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}

	views, err := h.acquireViews(class.IndexPath)
	if err != nil {
		h.logger.WithError(err).WithField("index_path", class.IndexPath).Warn("intercept: acquire views failed, falling through")
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}
	if views == nil {
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}

	stream, err := selectStream(views, class)
	if err != nil {
		h.logger.WithError(err).WithField("path", path).Warn("intercept: no stream for classified path, falling through")
		return h.osAPI.Open(path, readOnly, openExisting, hasTemplate)
	}

	oh := handle.New(path, class.PathType, class.SpanIndex, stream, views)
	h.table.Register(oh)
	return oh.ID, nil
}

func selectStream(views *creator.SqpackViews, class Classification) (stream.RandomAccessStream, error) {
	switch class.PathType {
	case handle.PathTypeIndex:
		return views.Index, nil
	case handle.PathTypeIndex2:
		return views.Index2, nil
	case handle.PathTypeData:
		s := views.DataSpan(class.SpanIndex)
		if s == nil {
			return nil, errdefs.ErrOutOfRangePathType
		}
		return s, nil
	default:
		return nil, errdefs.ErrOutOfRangePathType
	}
}

// Close implements spec.md §4.1: an engine-owned handle is dropped and
// always succeeds without a real close; anything else forwards.
func (h *Hooks) Close(token interface{}) error {
	if id, ok := token.(xid.ID); ok {
		if h.table.Drop(id) {
			return nil
		}
	}
	return h.osAPI.Close(token)
}

// Read implements spec.md §4.1's offset/cursor handling.
func (h *Hooks) Read(token interface{}, buf []byte, offset int64, useOffset bool) (int, error) {
	id, ok := token.(xid.ID)
	if !ok {
		return h.osAPI.Read(token, buf, offset, useOffset)
	}

	oh := h.table.Lookup(id)
	if oh == nil {
		return h.osAPI.Read(token, buf, offset, useOffset)
	}

	effOffset := oh.Cursor()
	if useOffset {
		effOffset = offset
	}

	n, err := oh.Stream.ReadPartial(effOffset, buf)
	if err != nil {
		return 0, errors.Wrap(errdefs.ErrOsIO, err.Error())
	}
	if n < len(buf) {
		h.logger.WithFields(logrus.Fields{
			"requested": len(buf),
			"got":       n,
			"offset":    effOffset,
		}).Debug("intercept: short read")
	}
	if !useOffset {
		oh.Advance(int64(n))
	}
	return n, nil
}

// Seek implements spec.md §4.1's three seek origins, keeping the
// source's literal `end - distance` arithmetic for FromEnd per the
// Open Question resolution recorded in DESIGN.md.
func (h *Hooks) Seek(token interface{}, distance int64, mode SeekMode) (int64, error) {
	id, ok := token.(xid.ID)
	if !ok {
		return h.osAPI.Seek(token, distance, mode)
	}

	oh := h.table.Lookup(id)
	if oh == nil {
		return h.osAPI.Seek(token, distance, mode)
	}

	var target int64
	switch mode {
	case SeekFromBegin:
		target = distance
	case SeekFromCurrent:
		target = oh.Cursor() + distance
	case SeekFromEnd:
		target = oh.Stream.Size() - distance
	default:
		return 0, errors.Wrap(errdefs.ErrOsIO, os.ErrInvalid.Error())
	}

	return oh.SeekTo(target), nil
}
