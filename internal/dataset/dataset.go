// Package dataset enumerates review items from a two-level
// <data_root>/<sport>/<event> directory tree. An event directory is an
// item when it holds the segment video, the caption record, and the
// run metadata produced by the capture pipeline.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	VideoFileName   = "segment.mp4"
	CaptionFileName = "long_caption.json"
	RunMetaFileName = "run_meta.json"
	StatusFileName  = "preprocess_status.json"
)

// Item identifies one reviewable segment. Immutable once constructed.
type Item struct {
	Sport       string
	Event       string
	Dir         string
	VideoPath   string
	CaptionPath string
	RunMetaPath string
	StatusPath  string
}

// Key is the stable two-level identifier of the item.
func (i Item) Key() string {
	return i.Sport + "/" + i.Event
}

type scanCache struct {
	scanned time.Time
	items   []Item
}

// Scanner lists dataset items, caching the directory walk for a short
// TTL so UI-driven refreshes stay cheap.
type Scanner struct {
	dataRoot string

	mu       sync.RWMutex
	cacheTTL time.Duration
	cache    *scanCache
}

type Option func(*Scanner)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Scanner) {
		s.cacheTTL = ttl
	}
}

func NewScanner(dataRoot string, opts ...Option) *Scanner {
	s := &Scanner{
		dataRoot: dataRoot,
		cacheTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached scan so the next Items call re-walks the
// data root.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// Items returns the ordered item list, served from cache within the TTL.
func (s *Scanner) Items() ([]Item, error) {
	s.mu.RLock()
	if s.cache != nil && time.Since(s.cache.scanned) < s.cacheTTL {
		items := s.cache.items
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	items, err := Scan(s.dataRoot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = &scanCache{scanned: time.Now(), items: items}
	s.mu.Unlock()
	return items, nil
}

// Scan walks the data root once and returns items sorted by sport then
// event. A missing root yields an empty list, not an error.
func Scan(dataRoot string) ([]Item, error) {
	sports, err := readSortedDirs(dataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var items []Item
	for _, sport := range sports {
		sportDir := filepath.Join(dataRoot, sport)
		events, err := readSortedDirs(sportDir)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			eventDir := filepath.Join(sportDir, event)
			item := Item{
				Sport:       sport,
				Event:       event,
				Dir:         eventDir,
				VideoPath:   filepath.Join(eventDir, VideoFileName),
				CaptionPath: filepath.Join(eventDir, CaptionFileName),
				RunMetaPath: filepath.Join(eventDir, RunMetaFileName),
				StatusPath:  filepath.Join(eventDir, StatusFileName),
			}
			if fileExists(item.VideoPath) && fileExists(item.CaptionPath) && fileExists(item.RunMetaPath) {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

func readSortedDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
