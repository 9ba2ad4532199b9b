package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/internal/api"
	"staybook/internal/availability"
	"staybook/internal/client"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/models"
	"staybook/internal/repository"
	"staybook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncCatalog(ctx,
		[]models.Property{{ID: "villa", Name: "Seaside Villa"}},
		[]models.Customer{{ID: "anna", Name: "Anna Smith"}},
	))
	catalog := service.NewCatalogService(db, &logger)
	require.NoError(t, catalog.Refresh(ctx))

	deps := api.Deps{
		Bookings:    service.NewBookingService(db, catalog, availability.NewIndex(), nil, nil, nil, &logger),
		Catalog:     catalog,
		Idempotency: repository.NewMemoryIdempotencyStore(time.Hour),
	}
	ts := httptest.NewServer(api.NewHTTPServer(config.APIConfig{}, deps, nil).Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL, "", "")
}

func TestRun_Commands(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	b, _, err := c.CreateBooking(ctx, api.CreateBookingRequest{
		PropertyID: "villa", CustomerID: "anna", StartDate: "2025-06-01", EndDate: "2025-06-04", GuestCount: 2,
	}, "")
	require.NoError(t, err)

	exec := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		require.NoError(t, run(ctx, c, args, &out))
		return out.String()
	}

	assert.Contains(t, exec("properties"), "Seaside Villa")
	assert.Contains(t, exec("list", "villa"), b.ID)
	assert.Contains(t, exec("get", b.ID), "2025-06-01..2025-06-04")
	assert.Contains(t, exec("availability", "villa", "2025-06-03", "2025-06-06"), "taken by "+b.ID)
	assert.Contains(t, exec("availability", "villa", "2025-06-04", "2025-06-06"), "free")

	month := exec("month", "2025-06", "villa")
	assert.Contains(t, month, "2025-06-01")
	assert.Contains(t, month, "2025-06-04")
	assert.NotContains(t, month, "2025-06-05")

	assert.Equal(t, b.ID+" confirmed\n", exec("status", b.ID, "CONFIRMED"))
}

func TestRun_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorIs(t, run(ctx, c, nil, &out), errUsage)
	assert.ErrorIs(t, run(ctx, c, []string{"availability", "villa"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, c, []string{"reboot"}, &out), errUsage)

	assert.Error(t, run(ctx, c, []string{"month", "June"}, &out))
	assert.Error(t, run(ctx, c, []string{"status", "x", "archived"}, &out))

	err := run(ctx, c, []string{"get", "missing"}, &out)
	assert.True(t, client.IsNotFound(err))
}
