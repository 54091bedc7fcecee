// Package history keeps the durable set of post fingerprints that were
// already dispatched to the target channel. The snapshot is a flat JSON
// file rewritten in full on every mutation. Every I/O failure here is
// logged and swallowed: a broken history file must never block reposting,
// the worst case is a duplicate send on the next run.
package history

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"time"
)

// DefaultFile is the history snapshot path used when none is configured.
const DefaultFile = "sent_posts.json"

// record is the on-disk shape of the history snapshot.
type record struct {
	LastUpdated string   `json:"last_updated"`
	SentPosts   []string `json:"sent_posts"`
}

// Store holds the in-memory fingerprint set backed by a JSON snapshot file.
// It is not safe for concurrent use; the pipeline is single-flow.
type Store struct {
	path string
	sent map[string]struct{}
}

// Load reads the history snapshot at path, creating an empty one when the
// file does not exist. Read and parse failures degrade to an empty
// in-memory store; Load never fails the caller.
func Load(path string) *Store {
	s := &Store{path: path, sent: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("[History] No history file at %s, creating a new one", path)
			s.save()
			return s
		}
		log.Printf("[History] Failed to read %s: %v, starting with empty history", path, err)
		return s
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[History] Failed to parse %s: %v, starting with empty history", path, err)
		return s
	}

	for _, fp := range rec.SentPosts {
		s.sent[fp] = struct{}{}
	}
	log.Printf("[History] Loaded %d sent posts from %s", len(s.sent), path)
	return s
}

// IsSent reports whether a fingerprint was already dispatched.
func (s *Store) IsSent(fp string) bool {
	_, ok := s.sent[fp]
	return ok
}

// MarkSent records a fingerprint and synchronously rewrites the snapshot.
// A failed write leaves the in-memory mark in place for the rest of the run.
func (s *Store) MarkSent(fp string) {
	s.sent[fp] = struct{}{}
	s.save()
}

// Clear empties the store and persists the now-empty snapshot.
func (s *Store) Clear() {
	s.sent = make(map[string]struct{})
	s.save()
	log.Printf("[History] History cleared")
}

// TotalSent returns the number of fingerprints tracked in memory.
func (s *Store) TotalSent() int {
	return len(s.sent)
}

func (s *Store) save() {
	rec := record{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		SentPosts:   make([]string, 0, len(s.sent)),
	}
	for fp := range s.sent {
		rec.SentPosts = append(rec.SentPosts, fp)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		log.Printf("[History] Failed to encode history: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("[History] Failed to save %s: %v", s.path, err)
	}
}
