package availability

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iv(start, end string) models.Interval {
	s, _ := models.ParseDate(start)
	e, _ := models.ParseDate(end)
	return models.Interval{Start: s, End: e}
}

func date(s string) time.Time {
	d, _ := models.ParseDate(s)
	return d
}

func TestIndex_InsertTouchingAndOverlapping(t *testing.T) {
	idx := NewIndex()

	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))
	require.NoError(t, idx.Insert("villa", "b2", iv("2025-06-05", "2025-06-10")), "touching intervals are legal")

	err := idx.Insert("villa", "b3", iv("2025-06-03", "2025-06-08"))
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "b1", conflict.ConflictingBookingID)
	assert.Equal(t, 2, idx.Len("villa"), "failed insert must not mutate")
}

func TestIndex_InsertChecksSuccessor(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "late", iv("2025-06-10", "2025-06-15")))

	err := idx.Insert("villa", "early", iv("2025-06-08", "2025-06-11"))
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "late", conflict.ConflictingBookingID)

	err = idx.Insert("villa", "same-start", iv("2025-06-10", "2025-06-11"))
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "late", conflict.ConflictingBookingID)
}

func TestIndex_RejectsEmptyInterval(t *testing.T) {
	idx := NewIndex()
	err := idx.Insert("villa", "b1", iv("2025-06-05", "2025-06-05"))
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 0, idx.Len("villa"))
}

func TestIndex_RemoveFreesInterval(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-07-01", "2025-07-10")))

	idx.Remove("villa", "b1")
	idx.Remove("villa", "missing")
	idx.Remove("other", "b1")

	assert.Equal(t, 0, idx.Len("villa"))
	require.NoError(t, idx.Insert("villa", "b2", iv("2025-07-01", "2025-07-10")))
}

func TestIndex_CrossPropertyIndependence(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))
	require.NoError(t, idx.Insert("cabin", "b2", iv("2025-06-01", "2025-06-05")))
	assert.Equal(t, 2, idx.Size())
}

func TestIndex_Query(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "c", iv("2025-06-20", "2025-06-25")))
	require.NoError(t, idx.Insert("villa", "a", iv("2025-06-01", "2025-06-05")))
	require.NoError(t, idx.Insert("villa", "b", iv("2025-06-05", "2025-06-10")))

	assert.Equal(t, []string{"a", "b", "c"}, idx.Query("villa", date("2025-06-01"), date("2025-07-01")))
	assert.Equal(t, []string{"b"}, idx.Query("villa", date("2025-06-05"), date("2025-06-06")))
	assert.Equal(t, []string{"a"}, idx.Query("villa", date("2025-06-04"), date("2025-06-05")))
	assert.Empty(t, idx.Query("villa", date("2025-06-10"), date("2025-06-20")))
	assert.Empty(t, idx.Query("unknown", date("2025-06-01"), date("2025-07-01")))
}

func TestIndex_ConflictExcludesSelf(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))
	require.NoError(t, idx.Insert("villa", "b2", iv("2025-06-08", "2025-06-12")))

	_, found := idx.Conflict("villa", iv("2025-06-02", "2025-06-06"), "b1")
	assert.False(t, found)

	id, found := idx.Conflict("villa", iv("2025-06-02", "2025-06-09"), "b1")
	assert.True(t, found)
	assert.Equal(t, "b2", id)
}

func TestIndex_Load(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("stale", "old", iv("2025-01-01", "2025-01-02")))

	bookings := []*models.Booking{
		{ID: "b2", PropertyID: "villa", StartDate: date("2025-06-10"), EndDate: date("2025-06-12"), Status: models.StatusConfirmed},
		{ID: "b1", PropertyID: "villa", StartDate: date("2025-06-01"), EndDate: date("2025-06-05"), Status: models.StatusPending},
		{ID: "b3", PropertyID: "villa", StartDate: date("2025-06-01"), EndDate: date("2025-06-05"), Status: models.StatusCancelled},
		{ID: "b4", PropertyID: "villa", StartDate: date("2025-06-11"), EndDate: date("2025-06-13"), Status: models.StatusPending},
	}

	err := idx.Load(bookings)
	assert.Error(t, err, "overlapping stored records are reported")
	assert.Equal(t, 2, idx.Len("villa"))
	assert.Equal(t, 0, idx.Len("stale"))
}

func TestTx_MultiplePropertiesAndRelease(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))

	tx := idx.Lock("villa", "cabin", "villa")
	tx.Remove("villa", "b1")
	require.NoError(t, tx.Insert("cabin", "b1", iv("2025-06-01", "2025-06-05")))
	assert.Error(t, tx.Insert("loft", "b9", iv("2025-06-01", "2025-06-05")), "unlocked property")
	tx.Unlock()
	tx.Unlock()

	assert.Error(t, tx.Insert("villa", "b2", iv("2025-06-01", "2025-06-05")), "released scope")
	assert.Equal(t, 0, idx.Len("villa"))
	assert.Equal(t, 1, idx.Len("cabin"))
}

func TestIndex_ConcurrentInsertsSameInterval(t *testing.T) {
	idx := NewIndex()
	const workers = 32

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- idx.Insert("villa", fmt.Sprintf("b%d", n), iv("2025-08-01", "2025-08-08"))
		}(i)
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else {
			assert.True(t, domain.IsConflict(err))
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, idx.Len("villa"))
}

func TestIndex_ConcurrentOppositeMoves(t *testing.T) {
	idx := NewIndex()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 200; i++ {
			tx := idx.Lock("a", "b")
			tx.Unlock()
		}
		close(done)
	}()
	for i := 0; i < 200; i++ {
		tx := idx.Lock("b", "a")
		tx.Unlock()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock ordering deadlocked")
	}
}

func TestIndex_SizeWhileScopeHeld(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))

	tx := idx.Lock("villa")
	defer tx.Unlock()

	got := make(chan int, 1)
	go func() { got <- idx.Size() }()

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Size blocked on a held property scope")
	}

	require.NoError(t, tx.Insert("villa", "b2", iv("2025-06-05", "2025-06-09")))
	assert.Equal(t, 2, idx.Size())
}

func TestIndex_SizeTracksMutations(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", iv("2025-06-01", "2025-06-05")))
	require.NoError(t, idx.Insert("cabin", "b2", iv("2025-06-01", "2025-06-05")))
	assert.Error(t, idx.Insert("villa", "b3", iv("2025-06-02", "2025-06-04")))
	assert.Equal(t, 2, idx.Size(), "rejected inserts are not counted")

	idx.Remove("villa", "b1")
	idx.Remove("villa", "b1")
	idx.Remove("villa", "missing")
	assert.Equal(t, 1, idx.Size())

	require.NoError(t, idx.Load([]*models.Booking{
		{ID: "a", PropertyID: "loft", StartDate: date("2025-06-01"), EndDate: date("2025-06-05"), Status: models.StatusPending},
		{ID: "b", PropertyID: "loft", StartDate: date("2025-06-05"), EndDate: date("2025-06-07"), Status: models.StatusConfirmed},
		{ID: "c", PropertyID: "loft", StartDate: date("2025-06-05"), EndDate: date("2025-06-07"), Status: models.StatusCancelled},
	}))
	assert.Equal(t, 2, idx.Size(), "load replaces the previous content")
}
