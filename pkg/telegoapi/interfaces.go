package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotAPI defines the interface for the Bot API operations used by the
// report delivery. This allows using both the real telego.Bot and mocks.
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetMe(ctx context.Context) (*telego.User, error)
}
