package pipeline

import (
	"time"

	"github.com/gotd/td/tg"
)

// Post is a candidate channel post as produced by the fetcher. It is
// consumed read-only by the pipeline; Media carries re-sendable input
// media references valid for the session that fetched them.
type Post struct {
	ChannelID  int64
	ChannelRef string // configured source reference, for logs
	MessageID  int
	Date       time.Time
	Text       string // caption-or-text, empty when the post has neither
	Media      []tg.InputMediaClass
	GroupedID  int64 // non-zero when the post is an album
	Views      int
	Reactions  int
	Comments   int
}

// Stats accumulates counters for one run. It is reset at process start
// and only printed at the end, never persisted.
type Stats struct {
	StartedAt      time.Time
	TotalProcessed int
	Sent           int
	Skipped        int
	Fallback       int // dispatched with the original text and a notice
	Errors         int // dispatch failures, post left unmarked
	TokensUsed     int
	ModelsUsed     map[string]int
}

// NewStats returns an empty accumulator with the clock started.
func NewStats() *Stats {
	return &Stats{
		StartedAt:  time.Now(),
		ModelsUsed: make(map[string]int),
	}
}

// Elapsed returns the wall time since the run started.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
