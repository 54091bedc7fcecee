package pipeline

import (
	"context"

	"reposter-bot/internal/paraphrase"
)

// Fetcher yields candidate posts for one source channel, already filtered
// by the acceptance thresholds and limited to the trailing time window.
type Fetcher interface {
	FetchPosts(ctx context.Context, channel string) ([]Post, error)
}

// Dispatcher delivers a post with its (possibly rewritten) text to the
// target channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, post Post, text string) error
}

// Rewriter produces the rewritten text for a post via the paraphrase
// fallback chain.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) paraphrase.Result
}

// History answers duplicate checks and records dispatched fingerprints.
type History interface {
	IsSent(fp string) bool
	MarkSent(fp string)
	TotalSent() int
}
