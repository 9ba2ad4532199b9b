package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const telegramQueueSize = 256

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends Markdown messages to the configured operator chats.
// Notify only enqueues; Run performs delivery.
type TelegramNotifier struct {
	bot     Sender
	chatIDs []int64
	queue   chan string
	logger  *zerolog.Logger
}

// NewTelegramNotifier returns a disabled notifier when token is empty.
func NewTelegramNotifier(token string, chatIDs []int64, debug bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	l := logger.With().Str("component", "telegram_notify").Logger()
	if token == "" {
		l.Warn().Msg("telegram bot token is empty, notifications disabled")
		return NewTelegramNotifierWithSender(nil, chatIDs, &l), nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug

	return NewTelegramNotifierWithSender(bot, chatIDs, &l), nil
}

func NewTelegramNotifierWithSender(bot Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		queue:   make(chan string, telegramQueueSize),
		logger:  logger,
	}
}

func (n *TelegramNotifier) Notify(_ context.Context, kind string, payload interface{}) {
	if n.bot == nil || len(n.chatIDs) == 0 {
		return
	}
	select {
	case n.queue <- Format(kind, payload):
	default:
		n.logger.Warn().Str("kind", kind).Msg("telegram queue full, notification dropped")
	}
}

// Run delivers queued messages until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			n.send(ctx, text)
		}
	}
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			n.logger.Debug().Int64("chat_id", chatID).Msg("notification skipped (context cancelled)")
			return
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send telegram notification")
		}
	}
}
