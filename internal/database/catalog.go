package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

func (db *DB) UpsertProperty(ctx context.Context, p *models.Property) error {
	return upsertProperty(ctx, db.DB, p)
}

func (db *DB) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	return upsertCustomer(ctx, db.DB, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertProperty(ctx context.Context, ex execer, p *models.Property) error {
	query := `INSERT INTO properties (id, name, google_calendar_id, updated_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name,
                  google_calendar_id = excluded.google_calendar_id, updated_at = excluded.updated_at`
	if _, err := ex.ExecContext(ctx, query, p.ID, p.Name, p.GoogleCalendarID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", p.ID, err)
	}
	return nil
}

func upsertCustomer(ctx context.Context, ex execer, c *models.Customer) error {
	query := `INSERT INTO customers (id, name, email, updated_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at`
	if _, err := ex.ExecContext(ctx, query, c.ID, c.Name, c.Email, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}

func (db *DB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := db.QueryRowContext(ctx, `SELECT id, name, google_calendar_id FROM properties WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.GoogleCalendarID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "property", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}

func (db *DB) ListProperties(ctx context.Context) ([]*models.Property, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, google_calendar_id FROM properties ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.GoogleCalendarID); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (db *DB) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := db.QueryRowContext(ctx, `SELECT id, name, email FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "customer", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

func (db *DB) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, email FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var out []*models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SyncCatalog upserts the configured properties and customers in one transaction.
func (db *DB) SyncCatalog(ctx context.Context, properties []models.Property, customers []models.Customer) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := range properties {
		if err := upsertProperty(ctx, tx, &properties[i]); err != nil {
			return err
		}
	}
	for i := range customers {
		if err := upsertCustomer(ctx, tx, &customers[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	db.logger.Info().Int("properties", len(properties)).Int("customers", len(customers)).Msg("catalog synced")
	return nil
}
