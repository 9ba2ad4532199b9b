package service

import (
	"context"
	"testing"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CacheAndNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	props, err := f.catalog.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, props, 2)

	assert.Equal(t, "Seaside Villa", f.catalog.PropertyName("villa"))
	assert.Equal(t, "John Doe", f.catalog.CustomerName("john"))
	assert.Empty(t, f.catalog.PropertyName("castle"))
}

func TestCatalogService_FallsBackToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SyncCatalog(ctx,
		[]models.Property{{ID: "loft", Name: "City Loft"}},
		[]models.Customer{{ID: "mia", Name: "Mia"}},
	))
	assert.Empty(t, f.catalog.PropertyName("loft"))

	p, err := f.catalog.GetProperty(ctx, "loft")
	require.NoError(t, err)
	assert.Equal(t, "City Loft", p.Name)
	assert.Equal(t, "City Loft", f.catalog.PropertyName("loft"))

	c, err := f.catalog.GetCustomer(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, "Mia", c.Name)

	_, err = f.catalog.GetProperty(ctx, "castle")
	assert.True(t, domain.IsNotFound(err))
}

func TestCatalogService_RequireMapsToValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.requireProperty(ctx, "castle")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ReasonUnknownProperty, verr.Reason)

	_, err = f.catalog.requireCustomer(ctx, "ghost")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ReasonUnknownCustomer, verr.Reason)
}
