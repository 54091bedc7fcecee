// Package telegram implements the channel-facing collaborators of the
// pipeline over the MTProto user client: scanning source channels for
// candidate posts and dispatching rewritten posts to the target channel.
// A user client is required because the Bot API cannot read arbitrary
// channel history.
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"reposter-bot/internal/config"
)

// ErrNotAuthorized is returned when the session file holds no logged-in
// user; the operator must run a login flow out of band.
var ErrNotAuthorized = errors.New("telegram session is not authorized")

// botAPIChannelOffset converts Bot API style ids (-100xxxxxxxxxx) to the
// bare MTProto channel id.
const botAPIChannelOffset = int64(1_000_000_000_000)

// NewClient builds the MTProto client with a file-backed session. The
// session must already be authorized; this process never runs an
// interactive login flow.
func NewClient(cfg *config.Config) *telegram.Client {
	return telegram.NewClient(cfg.TelegramAPIID, cfg.TelegramAPIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: cfg.SessionFile},
	})
}

// EnsureAuthorized verifies that the session file holds a logged-in user.
func EnsureAuthorized(ctx context.Context, client *telegram.Client) error {
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if !status.Authorized {
		return ErrNotAuthorized
	}
	return nil
}

// findBroadcastChannel picks the broadcast channel out of a resolved chat
// list, skipping discussion megagroups.
func findBroadcastChannel(chats []tg.ChatClass) (*tg.Channel, error) {
	for _, peer := range chats {
		ch, ok := peer.(*tg.Channel)
		if !ok {
			continue
		}
		if ch.Megagroup {
			continue
		}
		if ch.Broadcast {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("broadcast channel not found")
}

// normalizeChannelID maps a configured numeric channel id onto the bare
// MTProto id; Bot API exports channel ids with a -100 prefix.
func normalizeChannelID(id int64) int64 {
	if id <= -botAPIChannelOffset {
		return -id - botAPIChannelOffset
	}
	if id < 0 {
		return -id
	}
	return id
}
