// Package framecache serves decoded frame images for the item under
// review. Frames live on disk as numbered JPEGs extracted from the
// segment video, validated against a fingerprint of that video, with a
// bounded in-memory LRU in front of the disk directory.
package framecache

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sync"
)

// DefaultCapacity is the in-memory cache bound in decoded frames.
const DefaultCapacity = 128

// ErrFrameUnavailable marks a frame whose image cannot be served right
// now (not extracted yet, or its file is missing). Recoverable; callers
// keep the previous picture on screen.
var ErrFrameUnavailable = errors.New("frame image unavailable")

// Manager owns the on-disk cache root and the in-memory LRU for the
// currently active item directory.
type Manager struct {
	root string

	mu  sync.Mutex
	dir string
	lru *lruCache
}

func NewManager(root string, capacity int) *Manager {
	return &Manager{
		root: root,
		lru:  newLRUCache(capacity),
	}
}

// Root returns the on-disk cache root.
func (m *Manager) Root() string { return m.root }

// ItemDir returns the final cache directory for an item.
func (m *Manager) ItemDir(sport, event string) string {
	return filepath.Join(m.root, sport, event)
}

// StagingDir returns the hidden in-progress directory extraction writes
// into before the atomic promote to ItemDir.
func (m *Manager) StagingDir(sport, event string) string {
	return filepath.Join(m.root, sport, "."+event+".inprogress")
}

// Activate points the manager at a validated frame directory. The
// in-memory cache is purged unconditionally: a different video means
// different frame content even where the index spaces overlap.
func (m *Manager) Activate(dir string) {
	m.mu.Lock()
	m.dir = dir
	m.lru.purge()
	m.mu.Unlock()
}

// Deactivate detaches the manager from any frame directory.
func (m *Manager) Deactivate() {
	m.Activate("")
}

// FrameAt returns the decoded image for a frame index, promoting
// memory hits and loading misses from the active directory.
func (m *Manager) FrameAt(frame int) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dir == "" {
		return nil, ErrFrameUnavailable
	}
	if img, ok := m.lru.get(frame); ok {
		return img, nil
	}

	path := filepath.Join(m.dir, FrameFileName(frame))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameUnavailable, path)
		}
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m.lru.add(frame, img)
	return img, nil
}

// CachedFrames reports how many decoded frames are held in memory.
func (m *Manager) CachedFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.len()
}

// ClearDisk deletes the entire on-disk cache root and empties the
// in-memory cache. The owner must cancel any in-flight generation
// first; the call itself is safe at any time.
func (m *Manager) ClearDisk() error {
	m.mu.Lock()
	m.dir = ""
	m.lru.purge()
	m.mu.Unlock()
	return os.RemoveAll(m.root)
}
