/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package engine wires the SqPack primitives, overlay sources, and
// interception layer together into the single long-lived object a host
// process constructs once: it resolves an index path to its frozen
// SqpackViews (building and caching them on first use, per spec.md
// §4.4's acquire_views), and owns the Hooks a host's FileAPI calls
// through.
package engine

import (
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"

	"github.com/sqpack-overlay/engine/pkg/intercept"
	"github.com/sqpack-overlay/engine/pkg/metrics"
	"github.com/sqpack-overlay/engine/pkg/overlay"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/reader"
)

// DefaultViewsCacheSize bounds how many archives' worth of frozen views
// the Engine keeps alive at once (spec.md §4.4's "bounded so a
// long-running host process... doesn't grow the views map
// unboundedly").
const DefaultViewsCacheSize = 64

var blacklistBucket = []byte("blacklist")

// cachedViews pairs one triplet's frozen views with the set of
// FullPathHash values it serves, so ResolveContentPath can check
// whether a rewritten content path names a real entry without
// re-parsing the Index stream.
type cachedViews struct {
	views      *creator.SqpackViews
	pathHashes map[uint32]struct{}
}

// Engine is the Go-native stand-in for the original's process-global
// singleton: one per host process, constructed once via New and then
// shared by every intercepted call.
type Engine struct {
	sources []overlay.Source
	logger  logrus.FieldLogger

	sf    singleflight.Group
	cache *lru.Cache

	blacklistDB *bolt.DB

	hashTracker *sqpack.LanguageHashTracker

	Hooks *intercept.Hooks
}

// Options configures a new Engine.
type Options struct {
	BaseDir        string
	OSAPI          intercept.FileAPI
	Sources        []overlay.Source
	CacheDir       string
	ViewsCacheSize int
	Logger         logrus.FieldLogger

	// HashTrackerLanguage and LogObservedHashKeys configure the
	// optional filename-language-override/key-logging feature a host's
	// own hash-computation hook can drive through ResolveContentPath.
	// LanguageUnspecified disables rewriting entirely.
	HashTrackerLanguage sqpack.Language
	LogObservedHashKeys bool
}

// New constructs an Engine: a bounded views cache, a singleflight group
// collapsing concurrent first-callers for the same triplet, an on-disk
// blacklist bucket for triplets no overlay ever contributes to, and the
// Hooks a host's FileAPI consults.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	logger := opts.Logger.WithField("component", "engine")

	size := opts.ViewsCacheSize
	if size <= 0 {
		size = DefaultViewsCacheSize
	}
	// Eviction drops the cache's own reference rather than tearing the
	// views down outright: a handle still reading from them keeps them
	// alive via its own Retain until it closes (DESIGN.md Open Question).
	cache, err := lru.NewWithEvict(size, func(_ interface{}, value interface{}) {
		value.(*cachedViews).views.Release()
	})
	if err != nil {
		return nil, errors.Wrap(err, "engine: create views cache")
	}

	db, err := bolt.Open(filepath.Join(opts.CacheDir, "blacklist.bolt"), 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "engine: open blacklist database")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blacklistBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "engine: init blacklist bucket")
	}

	e := &Engine{
		sources:     opts.Sources,
		logger:      logger,
		cache:       cache,
		blacklistDB: db,
	}
	if opts.HashTrackerLanguage != sqpack.LanguageUnspecified || opts.LogObservedHashKeys {
		e.hashTracker = sqpack.NewLanguageHashTracker(opts.HashTrackerLanguage, opts.LogObservedHashKeys, logger)
	}
	e.Hooks = intercept.NewHooks(opts.BaseDir, opts.OSAPI, e.Acquire, logger)
	return e, nil
}

// ResolveContentPath applies the filename-language-override rewrite
// (and/or observed-key logging) a host's own virtual-path
// hash-computation hook drives ahead of resolving original to a SqPack
// entry, mirroring XivAlexander's GeneralHashCalcFn hook. It only
// considers triplets already present in the views cache, exactly as
// the original only consults views it has already acquired.
func (e *Engine) ResolveContentPath(original string) string {
	if e.hashTracker == nil {
		return original
	}
	rewritten, _ := e.hashTracker.Rewrite(original, e.contentPathExists)
	e.hashTracker.LogOnce(original, rewritten)
	return rewritten
}

func (e *Engine) contentPathExists(candidate string) bool {
	hash := sqpack.NewPathSpec(candidate).FullPathHash
	for _, key := range e.cache.Keys() {
		v, ok := e.cache.Peek(key)
		if !ok {
			continue
		}
		if _, found := v.(*cachedViews).pathHashes[hash]; found {
			return true
		}
	}
	return false
}

// Close releases the Engine's own on-disk resources. Handles should be
// drained first (see Drain); Close does not wait for in-flight calls.
func (e *Engine) Close() error {
	return e.blacklistDB.Close()
}

// Drain polls Hooks.InFlight until it reaches zero or the deadline
// elapses, giving a host process a clean shutdown point (spec.md §5).
func (e *Engine) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for e.Hooks.InFlight() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func (e *Engine) isBlacklisted(indexPath string) bool {
	var hit bool
	_ = e.blacklistDB.View(func(tx *bolt.Tx) error {
		hit = tx.Bucket(blacklistBucket).Get([]byte(indexPath)) != nil
		return nil
	})
	return hit
}

func (e *Engine) blacklist(indexPath string) {
	if err := e.blacklistDB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blacklistBucket).Put([]byte(indexPath), []byte{1})
	}); err != nil {
		e.logger.WithError(err).WithField("index_path", indexPath).Warn("engine: failed to persist blacklist entry")
	}
}

// Acquire resolves indexPath to its frozen views, implementing
// intercept.ViewsAcquirer. It satisfies spec.md §4.4's memoization: a
// cache hit retains and returns immediately; concurrent first-callers
// for the same path collapse into one build via singleflight; a
// triplet whose overlays contribute nothing is blacklisted and
// subsequently short-circuited without reopening the base archive.
func (e *Engine) Acquire(indexPath string) (*creator.SqpackViews, error) {
	if e.isBlacklisted(indexPath) {
		return nil, nil
	}

	if v, ok := e.cache.Get(indexPath); ok {
		metrics.ViewsCacheHitsTotal.Inc()
		cv := v.(*cachedViews)
		cv.views.Retain()
		return cv.views, nil
	}
	metrics.ViewsCacheMissesTotal.Inc()

	result, err, _ := e.sf.Do(indexPath, func() (interface{}, error) {
		// Re-check: another caller may have finished building and
		// populating the cache while we waited to enter singleflight.
		if v, ok := e.cache.Get(indexPath); ok {
			return v, nil
		}
		return e.build(indexPath)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	cv := result.(*cachedViews)
	cv.views.Retain()
	return cv.views, nil
}

func (e *Engine) build(indexPath string) (*cachedViews, error) {
	expac := filepath.Base(filepath.Dir(indexPath))
	name := strings.TrimSuffix(filepath.Base(indexPath), ".win32.index")

	c := creator.NewCreator(expac, name, e.logger)

	base, err := reader.Open(indexPath, e.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: open base archive %s", indexPath)
	}
	if _, err := c.AddEntriesFromSqPack(base, true, true); err != nil {
		return nil, errors.Wrapf(err, "engine: ingest base archive %s", indexPath)
	}

	total, err := overlay.ApplyAll(c, e.sources)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: apply overlays for %s", indexPath)
	}

	if total.Added == 0 && total.Replaced == 0 {
		e.logger.WithField("index_path", indexPath).Info("engine: no overlay contribution, blacklisting")
		metrics.BlacklistedTripletsTotal.Inc()
		e.blacklist(indexPath)
		return nil, nil
	}

	pathHashes := make(map[uint32]struct{}, len(c.Entries()))
	for _, p := range c.Entries() {
		pathHashes[p.PathSpec().FullPathHash] = struct{}{}
	}

	views, err := creator.Freeze(c, creator.FreezeOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "engine: freeze %s", indexPath)
	}

	metrics.ViewsBuiltTotal.Inc()
	views.Retain() // the cache's own reference
	cv := &cachedViews{views: views, pathHashes: pathHashes}
	e.cache.Add(indexPath, cv)
	return cv, nil
}
