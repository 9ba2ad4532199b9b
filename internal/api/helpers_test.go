package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/internal/availability"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/models"
	"staybook/internal/repository"
	"staybook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncCatalog(ctx,
		[]models.Property{
			{ID: "villa", Name: "Seaside Villa"},
			{ID: "cabin", Name: "Mountain Cabin"},
		},
		[]models.Customer{{ID: "anna", Name: "Anna Smith"}},
	))

	catalog := service.NewCatalogService(db, &logger)
	require.NoError(t, catalog.Refresh(ctx))

	bookings := service.NewBookingService(db, catalog, availability.NewIndex(), nil, nil, nil, &logger)
	return Deps{
		Bookings:    bookings,
		Catalog:     catalog,
		Idempotency: repository.NewMemoryIdempotencyStore(time.Hour),
	}
}

func newTestHTTP(t *testing.T, cfg config.APIConfig) (*httptest.Server, Deps) {
	t.Helper()
	deps := newTestDeps(t)
	srv := NewHTTPServer(cfg, deps, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, deps
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBody(property, start, end string) CreateBookingRequest {
	return CreateBookingRequest{
		PropertyID: property,
		CustomerID: "anna",
		StartDate:  start,
		EndDate:    end,
		GuestCount: 2,
	}
}
