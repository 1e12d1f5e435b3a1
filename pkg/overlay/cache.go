/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"path/filepath"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("ttmp-cache")

// CacheManifest records, per cache slot (e.g. "excel", "font"), the key
// that produced the TTMP pack currently sitting in that slot's
// directory, so a rebuild can be skipped when nothing that feeds it has
// changed (spec.md §4.5(2): "subsequent runs reuse the cache").
type CacheManifest struct {
	db *bolt.DB
}

// OpenCacheManifest opens (creating if absent) the bbolt database that
// backs the Excel-merge and font-generation TTMP caches.
func OpenCacheManifest(cacheDir string) (*CacheManifest, error) {
	db, err := bolt.Open(filepath.Join(cacheDir, "overlay-cache.bolt"), 0o644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "overlay: open cache manifest")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "overlay: init cache bucket")
	}
	return &CacheManifest{db: db}, nil
}

func (m *CacheManifest) Close() error { return m.db.Close() }

// Key returns the previously recorded key for slot, or "" if unset.
func (m *CacheManifest) Key(slot string) (string, error) {
	var key string
	err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cacheBucket).Get([]byte(slot))
		key = string(v)
		return nil
	})
	return key, err
}

// SetKey records the key that produced the current contents of slot.
func (m *CacheManifest) SetKey(slot, key string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(slot), []byte(key))
	})
}
