// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package objectcache is a thin adapter over any object store that
// applies an inbound transform before Set and an outbound transform
// after Get. It depends only on the two interfaces it declares itself,
// never importing package arrayfile directly -- a production Store
// would typically be built on an arrayfile.ArrayFile, but wiring that
// up is the caller's job.
package objectcache

// Store is the thing Cache wraps: a higher-level indexed object store,
// named only by the interface Cache consumes.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V) error
	Delete(key K) error
	Persist() error
	GetObjectIdStart() int64
	GetObjectIdCount() int64
}

// Transform mutates a value in place. A nil Transform is a no-op pass
// through.
type Transform[V any] interface {
	Apply(v V)
}

// TransformFunc adapts a plain function to Transform.
type TransformFunc[V any] func(v V)

func (f TransformFunc[V]) Apply(v V) { f(v) }

// Cache wraps a Store with optional inbound/outbound Transforms. It is
// a faithful passthrough for GetObjectIdStart, GetObjectIdCount,
// Delete, and Persist -- only Get and Set run a transform.
type Cache[K comparable, V any] struct {
	store    Store[K, V]
	inbound  Transform[V]
	outbound Transform[V]
}

// New wraps store. inbound and outbound may be nil.
func New[K comparable, V any](store Store[K, V], inbound, outbound Transform[V]) *Cache[K, V] {
	return &Cache[K, V]{
		store:    store,
		inbound:  inbound,
		outbound: outbound,
	}
}

// Get retrieves value by key, applying the outbound transform (if any)
// to it before returning.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return v, false
	}
	if c.outbound != nil {
		c.outbound.Apply(v)
	}
	return v, true
}

// Set applies the inbound transform (if any) to value, then stores it.
func (c *Cache[K, V]) Set(key K, value V) error {
	if c.inbound != nil {
		c.inbound.Apply(value)
	}
	return c.store.Set(key, value)
}

// Delete is a faithful passthrough to the wrapped Store.
func (c *Cache[K, V]) Delete(key K) error {
	return c.store.Delete(key)
}

// Persist is a faithful passthrough to the wrapped Store.
func (c *Cache[K, V]) Persist() error {
	return c.store.Persist()
}

// GetObjectIdStart is a faithful passthrough to the wrapped Store.
func (c *Cache[K, V]) GetObjectIdStart() int64 {
	return c.store.GetObjectIdStart()
}

// GetObjectIdCount is a faithful passthrough to the wrapped Store.
func (c *Cache[K, V]) GetObjectIdCount() int64 {
	return c.store.GetObjectIdCount()
}
