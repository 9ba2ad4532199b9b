// Package bot is the Telegram operator console: read-only calendar views,
// status changes and month exports for the configured operator chats.
package bot

import (
	"context"
	"time"

	"staybook/internal/domain"
	"staybook/internal/filter"
	"staybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Catalog lists properties and resolves display names.
type Catalog interface {
	ListProperties(ctx context.Context) ([]*models.Property, error)
	filter.NameResolver
}

type Bot struct {
	tg        TelegramAPI
	bookings  domain.BookingService
	catalog   Catalog
	operators map[int64]bool
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewBot(tg TelegramAPI, bookings domain.BookingService, catalog Catalog, operatorChats []int64, logger *zerolog.Logger) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "operator_bot").Logger()

	operators := make(map[int64]bool, len(operatorChats))
	for _, id := range operatorChats {
		operators[id] = true
	}

	return &Bot{
		tg:        tg,
		bookings:  bookings,
		catalog:   catalog,
		operators: operators,
		now:       time.Now,
		logger:    &l,
	}
}

// Start consumes updates until ctx is done or the channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates.
func (b *Bot) Stop() {
	if b == nil || b.tg == nil {
		return
	}
	b.tg.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Int64("chat_id", msg.Chat.ID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(&l, func() {
		if !b.operators[msg.Chat.ID] {
			l.Warn().Str("command", msg.Command()).Msg("command from unknown chat ignored")
			return
		}
		b.handleCommand(updateCtx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
	})
}

func (b *Bot) withRecovery(logger *zerolog.Logger, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to send reply")
	}
}
