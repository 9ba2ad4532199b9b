// Package availability keeps, per property, the sorted set of active booking
// intervals and answers overlap queries against it.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

// ConflictChecker finds an active booking overlapping an interval.
type ConflictChecker interface {
	Conflict(propertyID string, interval models.Interval, excludeID string) (string, bool)
}

type slot struct {
	bookingID string
	interval  models.Interval
}

// propertySlots is one property's interval set. Its mutex is the property's
// exclusion scope; slots stay sorted by start and mutually non-overlapping.
type propertySlots struct {
	mu     sync.RWMutex
	slots  []slot
	starts map[string]time.Time
	total  *atomic.Int64
}

type Index struct {
	mu         sync.Mutex
	properties map[string]*propertySlots
	// size counts intervals across properties so Size never takes a scope.
	size       atomic.Int64
}

func NewIndex() *Index {
	return &Index{properties: make(map[string]*propertySlots)}
}

func (x *Index) property(id string) *propertySlots {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, ok := x.properties[id]
	if !ok {
		p = &propertySlots{starts: make(map[string]time.Time), total: &x.size}
		x.properties[id] = p
	}
	return p
}

// Insert adds an interval unless it overlaps an existing one.
func (x *Index) Insert(propertyID, bookingID string, interval models.Interval) error {
	tx := x.Lock(propertyID)
	defer tx.Unlock()
	return tx.Insert(propertyID, bookingID, interval)
}

// Remove drops a booking's interval. Absent bookings are ignored.
func (x *Index) Remove(propertyID, bookingID string) {
	tx := x.Lock(propertyID)
	defer tx.Unlock()
	tx.Remove(propertyID, bookingID)
}

// Query returns the ids of active bookings intersecting [start, end), in start order.
func (x *Index) Query(propertyID string, start, end time.Time) []string {
	p := x.property(propertyID)
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []string
	p.scan(models.Interval{Start: start, End: end}, func(s slot) bool {
		ids = append(ids, s.bookingID)
		return true
	})
	return ids
}

// Conflict reports the first active booking other than excludeID that overlaps interval.
func (x *Index) Conflict(propertyID string, interval models.Interval, excludeID string) (string, bool) {
	p := x.property(propertyID)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conflict(interval, excludeID)
}

// Len is the number of intervals held for a property.
func (x *Index) Len(propertyID string) int {
	p := x.property(propertyID)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.slots)
}

// Size is the number of intervals across all properties. It is safe to call
// while holding a Tx.
func (x *Index) Size() int {
	return int(x.size.Load())
}

// Load replaces the content of the index with the active bookings given.
// Overlapping records are skipped and reported in the returned error.
func (x *Index) Load(bookings []*models.Booking) error {
	byProperty := make(map[string][]*models.Booking)
	for _, b := range bookings {
		if b.IsActive() {
			byProperty[b.PropertyID] = append(byProperty[b.PropertyID], b)
		}
	}

	x.mu.Lock()
	x.properties = make(map[string]*propertySlots, len(byProperty))
	x.size.Store(0)
	x.mu.Unlock()

	var errs []error
	for propertyID, list := range byProperty {
		sort.Slice(list, func(i, j int) bool {
			return list[i].StartDate.Before(list[j].StartDate)
		})
		p := x.property(propertyID)
		p.mu.Lock()
		for _, b := range list {
			if err := p.insert(b.ID, b.Interval()); err != nil {
				errs = append(errs, fmt.Errorf("property %s booking %s: %w", propertyID, b.ID, err))
			}
		}
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (p *propertySlots) insert(bookingID string, interval models.Interval) error {
	if !interval.Valid() {
		return domain.NewValidationError(domain.ReasonInvalidRange)
	}

	i := sort.Search(len(p.slots), func(i int) bool {
		return !p.slots[i].interval.Start.Before(interval.Start)
	})
	// Neighbours suffice: the set is already pairwise non-overlapping.
	if i > 0 && p.slots[i-1].interval.Overlaps(interval) {
		return &domain.ConflictError{ConflictingBookingID: p.slots[i-1].bookingID}
	}
	if i < len(p.slots) && p.slots[i].interval.Overlaps(interval) {
		return &domain.ConflictError{ConflictingBookingID: p.slots[i].bookingID}
	}

	p.slots = append(p.slots, slot{})
	copy(p.slots[i+1:], p.slots[i:])
	p.slots[i] = slot{bookingID: bookingID, interval: interval}
	p.starts[bookingID] = interval.Start
	p.total.Add(1)
	return nil
}

func (p *propertySlots) remove(bookingID string) {
	start, ok := p.starts[bookingID]
	if !ok {
		return
	}
	i := sort.Search(len(p.slots), func(i int) bool {
		return !p.slots[i].interval.Start.Before(start)
	})
	for ; i < len(p.slots) && p.slots[i].interval.Start.Equal(start); i++ {
		if p.slots[i].bookingID == bookingID {
			p.slots = append(p.slots[:i], p.slots[i+1:]...)
			p.total.Add(-1)
			break
		}
	}
	delete(p.starts, bookingID)
}

// scan visits slots intersecting interval in order until fn returns false.
func (p *propertySlots) scan(interval models.Interval, fn func(slot) bool) {
	// Ends are sorted too, so the first candidate is the first slot ending after the range start.
	i := sort.Search(len(p.slots), func(i int) bool {
		return p.slots[i].interval.End.After(interval.Start)
	})
	for ; i < len(p.slots) && p.slots[i].interval.Start.Before(interval.End); i++ {
		if !fn(p.slots[i]) {
			return
		}
	}
}

func (p *propertySlots) conflict(interval models.Interval, excludeID string) (string, bool) {
	var found string
	p.scan(interval, func(s slot) bool {
		if s.bookingID == excludeID {
			return true
		}
		found = s.bookingID
		return false
	})
	return found, found != ""
}
