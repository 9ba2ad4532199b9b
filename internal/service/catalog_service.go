package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService caches properties and customers read from the store.
// It also serves display names to the filter engine.
type CatalogService struct {
	repo       domain.Catalog
	logger     *zerolog.Logger
	properties []*models.Property
	customers  []*models.Customer
	propByID   map[string]*models.Property
	custByID   map[string]*models.Customer
	mu         sync.RWMutex
}

func NewCatalogService(repo domain.Catalog, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:     repo,
		logger:   logger,
		propByID: make(map[string]*models.Property),
		custByID: make(map[string]*models.Customer),
	}
}

// Refresh reloads the cache from the store.
func (s *CatalogService) Refresh(ctx context.Context) error {
	props, err := s.repo.ListProperties(ctx)
	if err != nil {
		return fmt.Errorf("failed to load properties: %w", err)
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}

	propByID := make(map[string]*models.Property, len(props))
	for _, p := range props {
		propByID[p.ID] = p
	}
	custByID := make(map[string]*models.Customer, len(customers))
	for _, c := range customers {
		custByID[c.ID] = c
	}

	s.mu.Lock()
	s.properties, s.customers = props, customers
	s.propByID, s.custByID = propByID, custByID
	s.mu.Unlock()

	s.logger.Debug().Int("properties", len(props)).Int("customers", len(customers)).Msg("catalog refreshed")
	return nil
}

// GetProperty serves from cache and falls back to the store for ids added since the last refresh.
func (s *CatalogService) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	s.mu.RLock()
	p, ok := s.propByID[id]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.propByID[id] = p
	s.properties = append(s.properties, p)
	s.mu.Unlock()
	return p, nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	s.mu.RLock()
	c, ok := s.custByID[id]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.custByID[id] = c
	s.customers = append(s.customers, c)
	s.mu.Unlock()
	return c, nil
}

func (s *CatalogService) ListProperties(_ context.Context) ([]*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Property(nil), s.properties...), nil
}

func (s *CatalogService) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Customer(nil), s.customers...), nil
}

func (s *CatalogService) PropertyName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.propByID[id]; ok {
		return p.Name
	}
	return ""
}

func (s *CatalogService) CustomerName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.custByID[id]; ok {
		return c.Name
	}
	return ""
}

// requireProperty maps a missing property to a validation error for write paths.
func (s *CatalogService) requireProperty(ctx context.Context, id string) (*models.Property, error) {
	p, err := s.GetProperty(ctx, id)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.NewValidationError(domain.ReasonUnknownProperty)
		}
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) requireCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.NewValidationError(domain.ReasonUnknownCustomer)
		}
		return nil, err
	}
	return c, nil
}
