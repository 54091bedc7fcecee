// Package pipeline orchestrates one repost run: fetch candidate posts per
// source channel, suppress duplicates by fingerprint, rewrite the text,
// dispatch to the target channel and pace between posts. Processing is a
// single logical flow; no two posts are ever in flight at once.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	sentry "github.com/getsentry/sentry-go"

	dbi "reposter-bot/internal/database"
	"reposter-bot/internal/database/models"
	"reposter-bot/internal/signature"
)

// fallbackNoticeFormat annotates a post dispatched with its original text
// after the rewrite chain was exhausted.
const fallbackNoticeFormat = "%s\n\n⚠️ Не удалось перефразировать: %s"

// Deps holds the dependencies required by the Pipeline.
type Deps struct {
	Fetcher    Fetcher
	Rewriter   Rewriter
	Dispatcher Dispatcher
	History    History
	PostLogger dbi.PostLogger // optional audit log, may be nil

	SourceChannels []string
	TargetChannel  string
	MinDelay       time.Duration
	MaxDelay       time.Duration

	// Rand drives the pacing jitter; Sleep is the actual wait and is
	// injectable for tests. Both default when nil.
	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration)
}

// Pipeline processes source channels sequentially for one run.
type Pipeline struct {
	fetcher    Fetcher
	rewriter   Rewriter
	dispatcher Dispatcher
	history    History
	postLogger dbi.PostLogger

	sourceChannels []string
	targetChannel  string
	minDelay       time.Duration
	maxDelay       time.Duration

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a new Pipeline instance from its dependencies.
// Returns the new Pipeline instance or an error if dependencies are missing.
func New(deps Deps) (*Pipeline, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if deps.Rewriter == nil {
		return nil, fmt.Errorf("rewriter cannot be nil")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("history store cannot be nil")
	}
	if len(deps.SourceChannels) == 0 {
		return nil, fmt.Errorf("source channel list cannot be empty")
	}
	if deps.MinDelay < 0 || deps.MinDelay > deps.MaxDelay {
		return nil, fmt.Errorf("invalid delay bounds [%s, %s]", deps.MinDelay, deps.MaxDelay)
	}

	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &Pipeline{
		fetcher:        deps.Fetcher,
		rewriter:       deps.Rewriter,
		dispatcher:     deps.Dispatcher,
		history:        deps.History,
		postLogger:     deps.PostLogger,
		sourceChannels: deps.SourceChannels,
		targetChannel:  deps.TargetChannel,
		minDelay:       deps.MinDelay,
		maxDelay:       deps.MaxDelay,
		rng:            rng,
		sleep:          sleep,
	}, nil
}

// Run processes every configured source channel in order and returns the
// accumulated statistics. A canceled context stops the run between posts;
// the in-flight post is abandoned without being marked sent.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := NewStats()
	log.Printf("[Pipeline] Starting run over %d source channel(s)", len(p.sourceChannels))

	for _, channel := range p.sourceChannels {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log.Printf("[Pipeline Channel:%s] Scanning", channel)
		posts, err := p.fetcher.FetchPosts(ctx, channel)
		if err != nil {
			log.Printf("[Pipeline Channel:%s] Fetch failed: %v", channel, err)
			sentry.CaptureException(err)
			continue
		}
		log.Printf("[Pipeline Channel:%s] Found %d candidate post(s)", channel, len(posts))

		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			if dispatched := p.processPost(ctx, post, stats); dispatched {
				p.pace(ctx)
			}
		}
	}

	log.Printf("[Pipeline] Run finished: %d processed, %d sent, %d skipped, %d fallback, %d errors",
		stats.TotalProcessed, stats.Sent, stats.Skipped, stats.Fallback, stats.Errors)
	return stats, nil
}

// processPost moves one post through the per-post state machine. The
// return value reports whether a dispatch was attempted, which is what
// triggers the pacing delay.
func (p *Pipeline) processPost(ctx context.Context, post Post, stats *Stats) bool {
	stats.TotalProcessed++

	fp := signature.ForPost(post.ChannelID, post.MessageID, post.Date, post.Text)
	if p.history.IsSent(fp) {
		log.Printf("[Pipeline Channel:%s Msg:%d] Already sent, skipping", post.ChannelRef, post.MessageID)
		stats.Skipped++
		return false
	}

	result := p.rewriter.Rewrite(ctx, post.Text)

	text := result.Text
	if result.Failed() {
		log.Printf("[Pipeline Channel:%s Msg:%d] Rewrite failed, dispatching original: %v",
			post.ChannelRef, post.MessageID, result.Err)
		text = fmt.Sprintf(fallbackNoticeFormat, post.Text, result.Err)
	}

	if err := p.dispatcher.Dispatch(ctx, post, text); err != nil {
		// Fingerprint intentionally not marked: the post stays eligible
		// for the next run.
		log.Printf("[Pipeline Channel:%s Msg:%d] Dispatch failed: %v", post.ChannelRef, post.MessageID, err)
		sentry.CaptureException(err)
		stats.Errors++
		return true
	}

	if result.Failed() {
		stats.Fallback++
	} else {
		stats.Sent++
		log.Printf("[Pipeline Channel:%s Msg:%d] Sent (model: %s, tokens: %d)",
			post.ChannelRef, post.MessageID, result.ModelName, result.TokensUsed)
	}
	stats.TokensUsed += result.TokensUsed
	stats.ModelsUsed[result.ModelName]++

	// Known gap: a crash between the dispatch above and this mark may
	// cause a duplicate send on the next run.
	p.history.MarkSent(fp)

	if p.postLogger != nil {
		entry := models.PostLog{
			SourceChannelID: post.ChannelID,
			SourceChannel:   post.ChannelRef,
			SourceMessageID: post.MessageID,
			Target:          p.targetChannel,
			Fingerprint:     fp,
			ModelName:       result.ModelName,
			TokensUsed:      result.TokensUsed,
			MediaGroup:      post.GroupedID != 0,
			OriginalDate:    post.Date,
			PublishedAt:     time.Now(),
		}
		if err := p.postLogger.LogPublishedPost(entry); err != nil {
			log.Printf("[Pipeline Channel:%s Msg:%d] Post log write failed: %v", post.ChannelRef, post.MessageID, err)
		}
	}

	return true
}

// pace sleeps for a uniformly random duration from the configured delay
// interval, returning early when the context is canceled.
func (p *Pipeline) pace(ctx context.Context) {
	delay := p.minDelay
	if spread := p.maxDelay - p.minDelay; spread > 0 {
		delay += time.Duration(p.rng.Int63n(int64(spread) + 1))
	}
	if delay <= 0 {
		return
	}
	log.Printf("[Pipeline] Pausing for %.1fs", delay.Seconds())
	p.sleep(ctx, delay)
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
