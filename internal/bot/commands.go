package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"staybook/internal/export"
	"staybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `Commands:
/today - bookings occupying today
/day YYYY-MM-DD [property] - bookings occupying a day
/month YYYY-MM [property] - month workbook
/booking ID - booking details
/free property YYYY-MM-DD YYYY-MM-DD - check availability
/confirm ID, /cancel ID, /complete ID - change status`

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	fields := strings.Fields(args)
	zerolog.Ctx(ctx).Debug().Str("command", command).Strs("args", fields).Msg("operator command")

	switch command {
	case "start", "help":
		b.reply(ctx, chatID, helpText)
	case "today":
		b.handleDay(ctx, chatID, []string{b.now().UTC().Format(models.DateLayout)})
	case "day":
		b.handleDay(ctx, chatID, fields)
	case "month":
		b.handleMonth(ctx, chatID, fields)
	case "booking":
		b.handleBooking(ctx, chatID, fields)
	case "free":
		b.handleFree(ctx, chatID, fields)
	case "confirm":
		b.handleTransition(ctx, chatID, fields, models.StatusConfirmed)
	case "cancel":
		b.handleTransition(ctx, chatID, fields, models.StatusCancelled)
	case "complete":
		b.handleTransition(ctx, chatID, fields, models.StatusCompleted)
	default:
		b.reply(ctx, chatID, "Unknown command. "+helpText)
	}
}

func (b *Bot) handleDay(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Usage: /day YYYY-MM-DD [property]")
		return
	}
	day, err := models.ParseDate(args[0])
	if err != nil {
		b.reply(ctx, chatID, "Invalid date, expected YYYY-MM-DD")
		return
	}

	bookings, err := b.bookings.GetDayDetail(ctx, optionalArg(args, 1), "", day)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("%s: no bookings", day.Format(models.DateLayout)))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d booking(s)\n", day.Format(models.DateLayout), len(bookings))
	for _, bk := range bookings {
		sb.WriteString(b.summaryLine(bk))
		sb.WriteByte('\n')
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) handleMonth(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Usage: /month YYYY-MM [property]")
		return
	}
	year, month, err := models.ParseMonth(args[0])
	if err != nil {
		b.reply(ctx, chatID, "Invalid month, expected YYYY-MM")
		return
	}
	propertyID := optionalArg(args, 1)

	view, err := b.bookings.GetMonthView(ctx, propertyID, "", year, month)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	properties, err := b.catalog.ListProperties(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if propertyID != "" {
		properties = onlyProperty(properties, propertyID)
	}

	f, err := export.MonthWorkbook(view, properties, b.catalog)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	b.sendDocument(ctx, chatID, export.FileName(year, month), buf)
}

func (b *Bot) handleBooking(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.reply(ctx, chatID, "Usage: /booking ID")
		return
	}
	bk, err := b.bookings.GetBooking(ctx, args[0])
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.reply(ctx, chatID, b.details(bk))
}

func (b *Bot) handleFree(ctx context.Context, chatID int64, args []string) {
	if len(args) != 3 {
		b.reply(ctx, chatID, "Usage: /free property YYYY-MM-DD YYYY-MM-DD")
		return
	}
	start, err1 := models.ParseDate(args[1])
	end, err2 := models.ParseDate(args[2])
	if err1 != nil || err2 != nil {
		b.reply(ctx, chatID, "Invalid date, expected YYYY-MM-DD")
		return
	}

	conflictID, free, err := b.bookings.CheckAvailability(ctx, args[0], models.NewInterval(start, end))
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if free {
		b.reply(ctx, chatID, fmt.Sprintf("%s is free %s", b.catalog.PropertyName(args[0]), models.NewInterval(start, end)))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("%s is taken by booking %s", b.catalog.PropertyName(args[0]), conflictID))
}

func (b *Bot) handleTransition(ctx context.Context, chatID int64, args []string, to models.Status) {
	if len(args) != 1 {
		b.reply(ctx, chatID, fmt.Sprintf("Usage: /%s ID", commandFor(to)))
		return
	}
	bk, err := b.bookings.TransitionStatus(ctx, args[0], to)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	zerolog.Ctx(ctx).Info().Str("booking_id", bk.ID).Str("status", bk.Status.String()).Msg("status changed by operator")
	b.reply(ctx, chatID, fmt.Sprintf("Booking %s is now %s", bk.ID, bk.Status))
}

func (b *Bot) sendDocument(ctx context.Context, chatID int64, name string, buf *bytes.Buffer) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file", name).Msg("failed to send document")
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).Msg("operator command failed")
	b.reply(ctx, chatID, "Error: "+err.Error())
}

func (b *Bot) summaryLine(bk *models.Booking) string {
	return fmt.Sprintf("%s %s: %s %s (%s)",
		bk.ID, b.catalog.PropertyName(bk.PropertyID), b.catalog.CustomerName(bk.CustomerID), bk.Interval(), bk.Status)
}

func (b *Bot) details(bk *models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking %s\n", bk.ID)
	fmt.Fprintf(&sb, "Property: %s\n", b.catalog.PropertyName(bk.PropertyID))
	fmt.Fprintf(&sb, "Customer: %s\n", b.catalog.CustomerName(bk.CustomerID))
	fmt.Fprintf(&sb, "Stay: %s, %d night(s)\n", bk.Interval(), bk.Interval().Nights())
	fmt.Fprintf(&sb, "Guests: %d\n", bk.GuestCount)
	fmt.Fprintf(&sb, "Status: %s\n", bk.Status)
	fmt.Fprintf(&sb, "Paid: %.2f of %.2f", bk.AmountPaid, bk.TotalAmount)
	if bk.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s", bk.Notes)
	}
	return sb.String()
}

func onlyProperty(properties []*models.Property, id string) []*models.Property {
	for _, p := range properties {
		if p.ID == id {
			return []*models.Property{p}
		}
	}
	return nil
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func commandFor(s models.Status) string {
	switch s {
	case models.StatusConfirmed:
		return "confirm"
	case models.StatusCancelled:
		return "cancel"
	default:
		return "complete"
	}
}
