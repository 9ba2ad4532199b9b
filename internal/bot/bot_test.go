package bot

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"staybook/internal/availability"
	"staybook/internal/database"
	"staybook/internal/export"
	"staybook/internal/models"
	"staybook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const operatorChat int64 = 42

type fakeTelegram struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.Chattable
	stopped bool
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "staybook_bot"}
}

func (f *fakeTelegram) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeTelegram) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func command(chatID int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

type fixture struct {
	bot      *Bot
	tg       *fakeTelegram
	bookings *service.BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncCatalog(ctx,
		[]models.Property{{ID: "villa", Name: "Seaside Villa"}, {ID: "cabin", Name: "Mountain Cabin"}},
		[]models.Customer{{ID: "anna", Name: "Anna Smith"}},
	))
	catalog := service.NewCatalogService(db, &logger)
	require.NoError(t, catalog.Refresh(ctx))

	bookings := service.NewBookingService(db, catalog, availability.NewIndex(), nil, nil, nil, &logger)
	tg := newFakeTelegram()
	b := NewBot(tg, bookings, catalog, []int64{operatorChat}, &logger)
	b.now = func() time.Time { return time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC) }

	return &fixture{bot: b, tg: tg, bookings: bookings}
}

func (f *fixture) book(t *testing.T, property, start, end string) *models.Booking {
	t.Helper()
	s, _ := models.ParseDate(start)
	e, _ := models.ParseDate(end)
	bk, err := f.bookings.CreateBooking(context.Background(), models.CreateBookingInput{
		PropertyID: property, CustomerID: "anna", StartDate: s, EndDate: e,
		GuestCount: 2, Status: models.StatusPending, TotalAmount: 500,
	})
	require.NoError(t, err)
	return bk
}

func TestBot_IgnoresUnknownChats(t *testing.T) {
	f := newFixture(t)
	f.bot.processUpdate(context.Background(), command(7, "/today"))
	f.bot.processUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: operatorChat}}})
	f.bot.processUpdate(context.Background(), tgbotapi.Update{})
	assert.Empty(t, f.tg.texts())
}

func TestBot_DayViews(t *testing.T) {
	f := newFixture(t)
	bk := f.book(t, "villa", "2025-06-01", "2025-06-05")
	ctx := context.Background()

	f.bot.processUpdate(ctx, command(operatorChat, "/today"))
	assert.Contains(t, f.tg.last(), "2025-06-03: 1 booking(s)")
	assert.Contains(t, f.tg.last(), bk.ID+" Seaside Villa: Anna Smith")

	f.bot.processUpdate(ctx, command(operatorChat, "/day 2025-06-05"))
	assert.Contains(t, f.tg.last(), "1 booking(s)", "checkout day is shown as occupied")

	f.bot.processUpdate(ctx, command(operatorChat, "/day 2025-06-03 cabin"))
	assert.Equal(t, "2025-06-03: no bookings", f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/day 03.06.2025"))
	assert.Contains(t, f.tg.last(), "Invalid date")
}

func TestBot_BookingAndTransitions(t *testing.T) {
	f := newFixture(t)
	bk := f.book(t, "villa", "2025-06-01", "2025-06-05")
	ctx := context.Background()

	f.bot.processUpdate(ctx, command(operatorChat, "/booking "+bk.ID))
	assert.Contains(t, f.tg.last(), "Stay: [2025-06-01, 2025-06-05), 4 night(s)")
	assert.Contains(t, f.tg.last(), "Paid: 0.00 of 500.00")

	f.bot.processUpdate(ctx, command(operatorChat, "/confirm "+bk.ID))
	assert.Equal(t, "Booking "+bk.ID+" is now confirmed", f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/confirm "+bk.ID))
	assert.True(t, strings.HasPrefix(f.tg.last(), "Error: "))

	f.bot.processUpdate(ctx, command(operatorChat, "/complete "+bk.ID))
	assert.Equal(t, "Booking "+bk.ID+" is now completed", f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/cancel"))
	assert.Equal(t, "Usage: /cancel ID", f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/booking missing"))
	assert.True(t, strings.HasPrefix(f.tg.last(), "Error: "))
}

func TestBot_Free(t *testing.T) {
	f := newFixture(t)
	bk := f.book(t, "villa", "2025-06-01", "2025-06-05")
	ctx := context.Background()

	f.bot.processUpdate(ctx, command(operatorChat, "/free villa 2025-06-04 2025-06-08"))
	assert.Equal(t, "Seaside Villa is taken by booking "+bk.ID, f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/free villa 2025-06-05 2025-06-08"))
	assert.Equal(t, "Seaside Villa is free [2025-06-05, 2025-06-08)", f.tg.last())

	f.bot.processUpdate(ctx, command(operatorChat, "/free villa 2025-06-05"))
	assert.Contains(t, f.tg.last(), "Usage: /free")
}

func TestBot_MonthSendsWorkbook(t *testing.T) {
	f := newFixture(t)
	f.book(t, "villa", "2025-06-01", "2025-06-03")

	f.bot.processUpdate(context.Background(), command(operatorChat, "/month 2025-06 villa"))

	f.tg.mu.Lock()
	require.Len(t, f.tg.sent, 1)
	doc, ok := f.tg.sent[0].(tgbotapi.DocumentConfig)
	f.tg.mu.Unlock()
	require.True(t, ok)

	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "calendar_2025-06.xlsx", file.Name)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Bytes))
	require.NoError(t, err)
	defer wb.Close()

	name, err := wb.GetCellValue(export.GridSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Seaside Villa", name)

	cell, err := wb.GetCellValue(export.GridSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Anna Smith (pending)", cell)
}

func TestBot_HelpAndUnknown(t *testing.T) {
	f := newFixture(t)
	f.bot.processUpdate(context.Background(), command(operatorChat, "/help"))
	assert.Equal(t, helpText, f.tg.last())

	f.bot.processUpdate(context.Background(), command(operatorChat, "/reboot"))
	assert.True(t, strings.HasPrefix(f.tg.last(), "Unknown command."))
}

func TestBot_StartStopsOnContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.bot.Start(ctx)
		close(done)
	}()

	f.tg.updates <- command(operatorChat, "/help")
	require.Eventually(t, func() bool { return len(f.tg.texts()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}

	f.bot.Stop()
	assert.True(t, f.tg.stopped)
}

func TestBot_WithRecovery(t *testing.T) {
	f := newFixture(t)
	l := zerolog.Nop()
	assert.NotPanics(t, func() {
		f.bot.withRecovery(&l, func() { panic("boom") })
	})
}
