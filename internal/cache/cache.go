// Package cache implements the hash-addressed binary render cache.
// Entries are derived, disposable artifacts: any entry can be rebuilt
// from the page row plus a render pass, so losing the store is never a
// correctness problem. Evictions propagate across cooperating nodes via
// the event bus; the local apply always happens first.
package cache

import (
	"errors"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/events"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/pagepath"
)

// RenderCache is the page render cache over a ByteStore.
type RenderCache struct {
	store ByteStore
	bus   events.Bus
	log   logger.Logger
}

// New wires a cache to its byte store and subscribes to inbound
// invalidation events. Inbound handlers apply locally without
// re-publishing, so the broadcast cycle terminates on every node.
func New(store ByteStore, bus events.Bus, log logger.Logger) *RenderCache {
	c := &RenderCache{store: store, bus: bus, log: log}
	bus.Subscribe(events.EventDeletePageFromCache, func(hash string) {
		if err := c.store.Delete(hash); err != nil {
			c.log.Error(err, "failed to apply inbound cache eviction")
		}
	})
	bus.Subscribe(events.EventFlushCache, func(string) {
		if err := c.store.Flush(); err != nil {
			c.log.Error(err, "failed to apply inbound cache flush")
		}
	})
	return c
}

// Get looks up the cached projection for (path, locale, privacy). The
// boolean reports a hit; a miss is not an error. On a hit the entry is
// annotated with the lookup path and locale, which are not serialized.
func (c *RenderCache) Get(path, locale string, isPrivate bool, privateNS string) (*Entry, bool, error) {
	if !isPrivate {
		privateNS = ""
	}
	hash := pagepath.Hash(path, locale, privateNS)
	b, err := c.store.Read(hash)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := DecodeEntry(b)
	if err != nil {
		return nil, false, err
	}
	entry.Path = path
	entry.LocaleCode = locale
	return entry, true, nil
}

// Put serializes the page projection and stores it under the page hash.
func (c *RenderCache) Put(page *data.Page, tags []data.Tag) error {
	b, err := NewEntry(page, tags).Encode()
	if err != nil {
		return err
	}
	return c.store.Write(page.Hash, b)
}

// Evict removes the entry for hash locally, then broadcasts the
// eviction so peers sharing the cache drop it too. Evicting an absent
// entry is not an error.
func (c *RenderCache) Evict(hash string) error {
	if err := c.store.Delete(hash); err != nil {
		return err
	}
	c.bus.Publish(events.EventDeletePageFromCache, hash)
	return nil
}

// Flush empties the cache locally and broadcasts the flush.
func (c *RenderCache) Flush() error {
	if err := c.store.Flush(); err != nil {
		return err
	}
	c.bus.Publish(events.EventFlushCache, "")
	return nil
}

// Close releases the underlying store.
func (c *RenderCache) Close() error {
	return c.store.Close()
}
