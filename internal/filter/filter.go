// Package filter evaluates the compound booking predicate shared by the list,
// calendar and dashboard views.
package filter

import (
	"net/url"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/models"
)

// NameResolver supplies display names for free-text search.
type NameResolver interface {
	PropertyName(id string) string
	CustomerName(id string) string
}

// Names is a NameResolver backed by plain maps.
type Names struct {
	Properties map[string]string
	Customers  map[string]string
}

func (n Names) PropertyName(id string) string { return n.Properties[id] }
func (n Names) CustomerName(id string) string { return n.Customers[id] }

// Apply keeps the bookings matching every set predicate. Input order is preserved.
func Apply(bookings []*models.Booking, f models.BookingFilter, names NameResolver) []*models.Booking {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if match(b, f, search, names) {
			out = append(out, b)
		}
	}
	return out
}

// Match reports whether a single booking satisfies the filter.
func Match(b *models.Booking, f models.BookingFilter, names NameResolver) bool {
	return match(b, f, strings.ToLower(strings.TrimSpace(f.Search)), names)
}

func match(b *models.Booking, f models.BookingFilter, search string, names NameResolver) bool {
	if f.PropertyID != "" && b.PropertyID != f.PropertyID {
		return false
	}
	if f.CustomerID != "" && b.CustomerID != f.CustomerID {
		return false
	}
	if !StatusMatches(b.Status, f.Status) {
		return false
	}
	if f.DateRange != nil && !b.Interval().Intersects(f.DateRange.Start, f.DateRange.End) {
		return false
	}
	if search != "" && !matchesSearch(b, search, names) {
		return false
	}
	return true
}

// StatusMatches treats "" and "all" as no constraint.
func StatusMatches(status models.Status, want string) bool {
	if want == "" || want == models.StatusFilterAll {
		return true
	}
	return string(status) == want
}

func matchesSearch(b *models.Booking, search string, names NameResolver) bool {
	if strings.Contains(strings.ToLower(b.ID), search) {
		return true
	}
	if names == nil {
		return false
	}
	return strings.Contains(strings.ToLower(names.PropertyName(b.PropertyID)), search) ||
		strings.Contains(strings.ToLower(names.CustomerName(b.CustomerID)), search)
}

// Parse builds a filter from query parameters: property_id, customer_id,
// status, search, from and to (YYYY-MM-DD, to exclusive).
func Parse(q url.Values) (models.BookingFilter, error) {
	f := models.BookingFilter{
		PropertyID: strings.TrimSpace(q.Get("property_id")),
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
		Status:     strings.TrimSpace(strings.ToLower(q.Get("status"))),
		Search:     strings.TrimSpace(q.Get("search")),
	}

	if err := ValidateStatus(f.Status); err != nil {
		return f, err
	}

	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" && to == "" {
		return f, nil
	}
	if from == "" || to == "" {
		return f, domain.NewValidationError(domain.ReasonInvalidRange)
	}
	start, err := models.ParseDate(from)
	if err != nil {
		return f, domain.NewValidationError(domain.ReasonInvalidDate)
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return f, domain.NewValidationError(domain.ReasonInvalidDate)
	}
	rng := models.NewInterval(start, end)
	if !rng.Valid() {
		return f, domain.NewValidationError(domain.ReasonInvalidRange)
	}
	f.DateRange = &rng
	return f, nil
}

// ValidateStatus accepts "", "all" or a known status.
func ValidateStatus(status string) error {
	if status == "" || status == models.StatusFilterAll {
		return nil
	}
	if _, err := models.ParseStatus(status); err != nil {
		return domain.NewValidationError(domain.ReasonInvalidStatus)
	}
	return nil
}
