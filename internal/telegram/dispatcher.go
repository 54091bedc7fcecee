package telegram

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gotd/td/tg"
	"go.uber.org/ratelimit"

	"reposter-bot/internal/config"
	"reposter-bot/internal/pipeline"
)

// Dispatcher sends rewritten posts to the target channel over the same
// MTProto session that fetched them, so fetched media references stay
// valid. It implements pipeline.Dispatcher.
type Dispatcher struct {
	api     *tg.Client
	cfg     *config.Config
	limiter ratelimit.Limiter
	rng     *rand.Rand
	peer    tg.InputPeerClass // resolved target, cached after first use
}

// NewDispatcher creates a dispatcher for the configured target channel.
func NewDispatcher(api *tg.Client, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		api: api,
		cfg: cfg,
		// One outgoing send per second on top of the pipeline pacing
		// delay; Telegram flood limits on channel posts are strict.
		limiter: ratelimit.New(1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch delivers the post with the given text: a plain message, a
// single media item with caption, or an album with the caption on its
// first element.
func (d *Dispatcher) Dispatch(ctx context.Context, post pipeline.Post, text string) error {
	peer, err := d.targetPeer(ctx)
	if err != nil {
		return err
	}

	d.limiter.Take()

	switch {
	case len(post.Media) > 1:
		return d.sendAlbum(ctx, peer, post, text)
	case len(post.Media) == 1:
		return d.sendMedia(ctx, peer, post, text)
	default:
		return d.sendText(ctx, peer, post, text)
	}
}

func (d *Dispatcher) sendText(ctx context.Context, peer tg.InputPeerClass, post pipeline.Post, text string) error {
	_, err := d.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: d.rng.Int63(),
	})
	if err != nil {
		return fmt.Errorf("send message for post %d: %w", post.MessageID, err)
	}
	log.Printf("[Dispatcher] Sent text post %d", post.MessageID)
	return nil
}

func (d *Dispatcher) sendMedia(ctx context.Context, peer tg.InputPeerClass, post pipeline.Post, text string) error {
	_, err := d.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    post.Media[0],
		Message:  text,
		RandomID: d.rng.Int63(),
	})
	if err != nil {
		return fmt.Errorf("send media for post %d: %w", post.MessageID, err)
	}
	log.Printf("[Dispatcher] Sent media post %d", post.MessageID)
	return nil
}

func (d *Dispatcher) sendAlbum(ctx context.Context, peer tg.InputPeerClass, post pipeline.Post, text string) error {
	multi := make([]tg.InputSingleMedia, 0, len(post.Media))
	for i, media := range post.Media {
		single := tg.InputSingleMedia{
			Media:    media,
			RandomID: d.rng.Int63(),
		}
		if i == 0 {
			single.Message = text
		}
		multi = append(multi, single)
	}

	_, err := d.api.MessagesSendMultiMedia(ctx, &tg.MessagesSendMultiMediaRequest{
		Peer:       peer,
		MultiMedia: multi,
	})
	if err != nil {
		return fmt.Errorf("send album for post %d: %w", post.MessageID, err)
	}
	log.Printf("[Dispatcher] Sent album of %d item(s) for post %d", len(post.Media), post.MessageID)
	return nil
}

// targetPeer resolves the configured target once: numeric ids are looked
// up in the account's dialogs (the only place their access hash is
// known), handles go through username resolution.
func (d *Dispatcher) targetPeer(ctx context.Context) (tg.InputPeerClass, error) {
	if d.peer != nil {
		return d.peer, nil
	}

	var (
		ch  *tg.Channel
		err error
	)
	if id, numeric := d.cfg.TargetChannelID(); numeric {
		ch, err = d.findDialogChannel(ctx, id)
	} else {
		ch, err = d.resolveHandle(ctx, d.cfg.TargetChannelHandle())
	}
	if err != nil {
		return nil, err
	}

	d.peer = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	return d.peer, nil
}

func (d *Dispatcher) resolveHandle(ctx context.Context, handle string) (*tg.Channel, error) {
	resolved, err := d.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: handle})
	if err != nil {
		return nil, fmt.Errorf("resolve target %s: %w", handle, err)
	}
	ch, err := findBroadcastChannel(resolved.GetChats())
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", handle, err)
	}
	return ch, nil
}

func (d *Dispatcher) findDialogChannel(ctx context.Context, id int64) (*tg.Channel, error) {
	raw, err := d.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	var chats []tg.ChatClass
	switch v := raw.(type) {
	case *tg.MessagesDialogs:
		chats = v.Chats
	case *tg.MessagesDialogsSlice:
		chats = v.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response type %T", raw)
	}

	want := normalizeChannelID(id)
	for _, c := range chats {
		if ch, ok := c.(*tg.Channel); ok && ch.ID == want {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("target channel %d not found among account dialogs", id)
}
