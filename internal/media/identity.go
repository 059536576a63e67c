// internal/media/identity.go
package media

import (
	"net/url"
	"strings"
	"sync"
)

// StableID extracts the durable identity of a media URL: the storage
// key (host + path), with the time-limited signature/expiry query string
// dropped. Two URLs with the same StableID point at the same underlying
// object even when the backend has rotated the presigned query parameters.
//
// A raw string that does not parse as a URL is its own identity.
func StableID(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Relative URL or bare path: key on the path alone.
	if u.Host == "" {
		return strings.TrimSuffix(u.Path, "/")
	}

	return u.Host + strings.TrimSuffix(u.Path, "/")
}

// SameObject reports whether two URLs refer to the same underlying media
// object. All change detection on media URLs must go through this (or
// StableID), never through raw string equality.
func SameObject(a, b string) bool {
	return StableID(a) == StableID(b)
}

// SourceCache 记录每个槽位（场景的某个媒体通道）当前加载的对象身份，
// 用来决定一个新观察到的 URL 是否需要触发真正的重新加载。
//
// The pipeline backend rotates signed URLs on every poll tick; without this
// guard every tick would restart playback and refetch the clip.
type SourceCache struct {
	mu    sync.Mutex
	slots map[string]string // slot -> stable ID currently loaded
}

// NewSourceCache creates an empty source cache.
func NewSourceCache() *SourceCache {
	return &SourceCache{
		slots: make(map[string]string),
	}
}

// NeedsReload reports whether observing rawURL for the given slot requires
// reassigning the slot's source, and records the new identity when it does.
// An empty URL clears the slot and does not count as a reload.
func (c *SourceCache) NeedsReload(slot, rawURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := StableID(rawURL)

	current, loaded := c.slots[slot]
	if id == "" {
		delete(c.slots, slot)
		return false
	}
	if loaded && current == id {
		return false
	}

	c.slots[slot] = id
	return true
}

// Current returns the stable ID currently loaded for the slot, if any.
func (c *SourceCache) Current(slot string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.slots[slot]
	return id, ok
}

// Forget drops the slot, forcing the next observation to reload.
func (c *SourceCache) Forget(slot string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.slots, slot)
}
