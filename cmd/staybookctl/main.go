// Command staybookctl queries and updates a running staybook API from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"staybook/internal/api"
	"staybook/internal/client"
	"staybook/internal/models"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const usage = `usage: staybookctl <command> [args]

commands:
  properties
  availability PROPERTY YYYY-MM-DD YYYY-MM-DD
  month YYYY-MM [PROPERTY]
  list [PROPERTY]
  get ID
  status ID pending|confirmed|cancelled|completed

environment: STAYBOOK_URL, STAYBOOK_API_KEY, STAYBOOK_API_EXTRA, STAYBOOK_REDIS_ADDR`

var errUsage = errors.New(usage)

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient()
	if err := run(ctx, c, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	baseURL := os.Getenv("STAYBOOK_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := client.New(baseURL, os.Getenv("STAYBOOK_API_KEY"), os.Getenv("STAYBOOK_API_EXTRA"))

	if addr := os.Getenv("STAYBOOK_REDIS_ADDR"); addr != "" {
		c.UseRedisCache(redis.NewClient(&redis.Options{Addr: addr}), 5*time.Minute)
	}
	return c
}

func run(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "properties":
		return properties(ctx, c, out)
	case "availability":
		if len(args) != 3 {
			return errUsage
		}
		return availability(ctx, c, out, args[0], args[1], args[2])
	case "month":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		return month(ctx, c, out, args[0], optional(args, 1))
	case "list":
		bookings, err := c.ListBookings(ctx, api.ListBookingsRequest{PropertyID: optional(args, 0)})
		if err != nil {
			return err
		}
		return printBookings(out, bookings)
	case "get":
		if len(args) != 1 {
			return errUsage
		}
		b, err := c.GetBooking(ctx, args[0])
		if err != nil {
			return err
		}
		return printBookings(out, []*api.BookingMessage{b})
	case "status":
		if len(args) != 2 {
			return errUsage
		}
		to, err := models.ParseStatus(strings.ToLower(args[1]))
		if err != nil {
			return err
		}
		b, err := c.TransitionStatus(ctx, args[0], to)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", b.ID, b.Status)
		return nil
	default:
		return errUsage
	}
}

func properties(ctx context.Context, c *client.Client, out io.Writer) error {
	list, err := c.ListProperties(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
	}
	return w.Flush()
}

func availability(ctx context.Context, c *client.Client, out io.Writer, propertyID, from, to string) error {
	start, err := models.ParseDate(from)
	if err != nil {
		return err
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return err
	}
	resp, err := c.CheckAvailability(ctx, propertyID, start, end)
	if err != nil {
		return err
	}
	if resp.Available {
		fmt.Fprintf(out, "%s free %s\n", propertyID, models.NewInterval(start, end))
		return nil
	}
	fmt.Fprintf(out, "%s taken by %s\n", propertyID, resp.ConflictingBookingID)
	return nil
}

func month(ctx context.Context, c *client.Client, out io.Writer, ym, propertyID string) error {
	year, m, err := models.ParseMonth(ym)
	if err != nil {
		return err
	}
	view, err := c.MonthView(ctx, year, m, propertyID)
	if err != nil {
		return err
	}

	days := make([]string, 0, len(view.Days))
	for d := range view.Days {
		days = append(days, d)
	}
	sort.Strings(days)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range days {
		ids := view.Days[d]
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", d, strings.Join(ids, ","))
	}
	return w.Flush()
}

func printBookings(out io.Writer, bookings []*api.BookingMessage) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, b := range bookings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s..%s\t%s\n", b.ID, b.PropertyID, b.CustomerID, b.StartDate, b.EndDate, b.Status)
	}
	return w.Flush()
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
