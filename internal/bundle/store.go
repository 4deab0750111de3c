// Package bundle holds the in-memory file set of an extracted creative
// bundle and resolves virtual request paths against it.
package bundle

import (
	"strings"
	"sync"
)

// File is one entry of a bundle generation. Path is the unique relative
// POSIX-style key. Content is either text or, for binary assets captured
// during extraction, a data: URI.
type File struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Store is the current generation of extracted files. Each ReplaceAll swaps
// the whole set; there are no partial updates. The request router owns the
// store exclusively; other components only ever send full replacement sets.
type Store struct {
	mu         sync.RWMutex
	files      []File
	index      map[string]int
	generation uint64
}

// NewStore creates an empty store at generation zero.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// ReplaceAll atomically swaps the entire file set and returns the new
// generation number. A duplicate path within files overwrites the earlier
// entry in place, keeping the first occurrence's position in iteration
// order.
func (s *Store) ReplaceAll(files []File) uint64 {
	ordered := make([]File, 0, len(files))
	index := make(map[string]int, len(files))
	for _, f := range files {
		if at, seen := index[f.Path]; seen {
			ordered[at] = f
			continue
		}
		index[f.Path] = len(ordered)
		ordered = append(ordered, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = ordered
	s.index = index
	s.generation++
	return s.generation
}

// Clear drops the current generation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.index = make(map[string]int)
	s.generation++
}

// Get returns the file stored under exactly path.
func (s *Store) Get(path string) (File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.index[path]
	if !ok {
		return File{}, false
	}
	return s.files[at], true
}

// Resolve answers a request path against the current generation:
//
//  1. exact match
//  2. the path with a leading '/' stripped
//  3. first stored entry (insertion order) whose path ends with "/"+path —
//     covers bundles whose entry point lives in a subdirectory; with
//     multiple suffix matches the first encountered wins
//
// The boolean result is false when nothing matched.
func (s *Store) Resolve(path string) (File, bool) {
	if f, ok := s.Get(path); ok {
		return f, true
	}
	if len(path) > 0 && path[0] == '/' {
		if f, ok := s.Get(path[1:]); ok {
			return f, true
		}
		path = path[1:]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	suffix := "/" + path
	for _, f := range s.files {
		if f.Path == path || strings.HasSuffix(f.Path, suffix) {
			return f, true
		}
	}
	return File{}, false
}

// Generation returns the current generation number. It increments on every
// ReplaceAll and Clear, so a response can be checked against the generation
// it was resolved from.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Len returns the number of files in the live generation.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Paths returns the stored paths in insertion order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.Path
	}
	return out
}
