package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gotd/td/tg"

	"reposter-bot/internal/config"
	"reposter-bot/internal/pipeline"
)

// historyFetchLimit caps how many messages one channel scan reads.
const historyFetchLimit = 200

// Scanner fetches and filters candidate posts from source channels. It
// implements pipeline.Fetcher.
type Scanner struct {
	api          *tg.Client
	window       time.Duration
	minViews     int
	minReactions int
	minComments  int
}

// NewScanner creates a scanner over an MTProto API client, with the
// trailing window and acceptance thresholds taken from the configuration.
func NewScanner(api *tg.Client, cfg *config.Config) *Scanner {
	return &Scanner{
		api:          api,
		window:       time.Duration(cfg.PeriodHours) * time.Hour,
		minViews:     cfg.MinViews,
		minReactions: cfg.MinReactions,
		minComments:  cfg.MinComments,
	}
}

// FetchPosts returns the channel's posts inside the trailing window that
// pass the acceptance filters, newest first. Media-group members are
// collapsed into a single post carrying the whole album.
func (s *Scanner) FetchPosts(ctx context.Context, channel string) ([]pipeline.Post, error) {
	username := config.NormalizeChannelRef(channel)
	if _, err := strconv.ParseInt(username, 10, 64); err == nil {
		// A bare id carries no access hash for a fresh session, so there
		// is nothing to pass to MessagesGetHistory.
		return nil, fmt.Errorf("source channel %q: numeric ids cannot be resolved, use a username", channel)
	}

	ch, err := s.resolveChannel(ctx, username)
	if err != nil {
		return nil, err
	}

	raw, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  ch.ID,
			AccessHash: ch.AccessHash,
		},
		Limit: historyFetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history for %s: %w", username, err)
	}

	messages, ok := raw.(*tg.MessagesChannelMessages)
	if !ok {
		return nil, fmt.Errorf("unexpected history response type %T", raw)
	}

	cutoff := time.Now().Add(-s.window)
	posts := collectPosts(messages.Messages, ch.ID, channel, cutoff)

	accepted := posts[:0]
	for _, post := range posts {
		if s.accept(post) {
			accepted = append(accepted, post)
		}
	}
	log.Printf("[Scanner Channel:%s] %d post(s) in window, %d passed filters", channel, len(posts), len(accepted))
	return accepted, nil
}

func (s *Scanner) resolveChannel(ctx context.Context, username string) (*tg.Channel, error) {
	resolved, err := s.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", username, err)
	}
	ch, err := findBroadcastChannel(resolved.GetChats())
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", username, err)
	}
	return ch, nil
}

// accept applies the configured thresholds; a zero threshold disables
// its filter. Posts without text never reach this point.
func (s *Scanner) accept(post pipeline.Post) bool {
	if s.minViews > 0 && post.Views < s.minViews {
		log.Printf("[Scanner Channel:%s Msg:%d] Skipped: %d views < %d", post.ChannelRef, post.MessageID, post.Views, s.minViews)
		return false
	}
	if s.minReactions > 0 && post.Reactions < s.minReactions {
		log.Printf("[Scanner Channel:%s Msg:%d] Skipped: %d reactions < %d", post.ChannelRef, post.MessageID, post.Reactions, s.minReactions)
		return false
	}
	if s.minComments > 0 && post.Comments < s.minComments {
		log.Printf("[Scanner Channel:%s Msg:%d] Skipped: %d comments < %d", post.ChannelRef, post.MessageID, post.Comments, s.minComments)
		return false
	}
	return true
}

// collectPosts turns a raw history page (newest first) into candidate
// posts. Service messages and textless standalone messages are dropped;
// album members are merged into one post anchored at the captioned
// member. Messages older than cutoff end the scan.
func collectPosts(messages []tg.MessageClass, channelID int64, channelRef string, cutoff time.Time) []pipeline.Post {
	var posts []pipeline.Post
	albums := make(map[int64]int) // grouped id -> index into posts

	for _, raw := range messages {
		msg, ok := raw.(*tg.Message)
		if !ok {
			continue // service messages and gaps
		}
		date := time.Unix(int64(msg.Date), 0)
		if date.Before(cutoff) {
			break
		}

		media, hasMedia := inputMediaFrom(msg)

		if groupID, isAlbum := msg.GetGroupedID(); isAlbum {
			idx, seen := albums[groupID]
			if !seen {
				posts = append(posts, pipeline.Post{
					ChannelID:  channelID,
					ChannelRef: channelRef,
					GroupedID:  groupID,
				})
				idx = len(posts) - 1
				albums[groupID] = idx
			}
			entry := &posts[idx]
			if hasMedia {
				entry.Media = append(entry.Media, media)
			}
			// The captioned member anchors the post; any member stands
			// in until one is seen.
			if entry.MessageID == 0 || msg.Message != "" {
				entry.MessageID = msg.ID
				entry.Date = date
				entry.Text = msg.Message
				entry.Views, entry.Reactions, entry.Comments = postMetrics(msg)
			}
			continue
		}

		if msg.Message == "" {
			continue
		}
		post := pipeline.Post{
			ChannelID:  channelID,
			ChannelRef: channelRef,
			MessageID:  msg.ID,
			Date:       date,
			Text:       msg.Message,
		}
		if hasMedia {
			post.Media = append(post.Media, media)
		}
		post.Views, post.Reactions, post.Comments = postMetrics(msg)
		posts = append(posts, post)
	}

	// History pages run newest first, so album media arrived reversed.
	result := posts[:0]
	for _, post := range posts {
		if post.Text == "" {
			continue // caption-less album
		}
		if post.GroupedID != 0 {
			reverseMedia(post.Media)
		}
		result = append(result, post)
	}
	return result
}

func postMetrics(msg *tg.Message) (views, reactions, comments int) {
	if v, ok := msg.GetViews(); ok {
		views = v
	}
	if r, ok := msg.GetReactions(); ok {
		for _, rc := range r.Results {
			reactions += rc.Count
		}
	}
	if replies, ok := msg.GetReplies(); ok {
		comments = replies.Replies
	}
	return views, reactions, comments
}

// inputMediaFrom extracts a re-sendable media reference from a fetched
// message. The reference is only valid for the session that fetched it.
func inputMediaFrom(msg *tg.Message) (tg.InputMediaClass, bool) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, false
	}
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		raw, ok := m.GetPhoto()
		if !ok {
			return nil, false
		}
		photo, ok := raw.(*tg.Photo)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
			},
		}, true
	case *tg.MessageMediaDocument:
		raw, ok := m.GetDocument()
		if !ok {
			return nil, false
		}
		doc, ok := raw.(*tg.Document)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, true
	}
	return nil, false
}

func reverseMedia(media []tg.InputMediaClass) {
	for i, j := 0, len(media)-1; i < j; i, j = i+1, j-1 {
		media[i], media[j] = media[j], media[i]
	}
}
