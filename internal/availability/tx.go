package availability

import (
	"fmt"
	"sort"

	"staybook/internal/models"
)

// Tx holds the exclusion scope of one or more properties. All mutations of a
// booking's interval go through a Tx so that validate, store write and index
// update happen as one critical section.
type Tx struct {
	held  map[string]*propertySlots
	order []*propertySlots
	done  bool
}

// Lock acquires the write scope of every listed property. Scopes are taken
// in id order so two callers moving bookings between the same properties
// cannot deadlock.
func (x *Index) Lock(propertyIDs ...string) *Tx {
	ids := make([]string, 0, len(propertyIDs))
	seen := make(map[string]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	tx := &Tx{held: make(map[string]*propertySlots, len(ids))}
	for _, id := range ids {
		p := x.property(id)
		p.mu.Lock()
		tx.held[id] = p
		tx.order = append(tx.order, p)
	}
	return tx
}

// Unlock releases the scopes. Calling it more than once is safe.
func (t *Tx) Unlock() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.order) - 1; i >= 0; i-- {
		t.order[i].mu.Unlock()
	}
}

func (t *Tx) Insert(propertyID, bookingID string, interval models.Interval) error {
	p, err := t.slots(propertyID)
	if err != nil {
		return err
	}
	return p.insert(bookingID, interval)
}

func (t *Tx) Remove(propertyID, bookingID string) {
	if p, err := t.slots(propertyID); err == nil {
		p.remove(bookingID)
	}
}

// Conflict satisfies ConflictChecker. Properties outside the scope never conflict.
func (t *Tx) Conflict(propertyID string, interval models.Interval, excludeID string) (string, bool) {
	p, err := t.slots(propertyID)
	if err != nil {
		return "", false
	}
	return p.conflict(interval, excludeID)
}

func (t *Tx) slots(propertyID string) (*propertySlots, error) {
	if t.done {
		return nil, fmt.Errorf("availability: scope already released")
	}
	p, ok := t.held[propertyID]
	if !ok {
		return nil, fmt.Errorf("availability: property %s is not locked", propertyID)
	}
	return p, nil
}
