package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/models"
	"staybook/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []models.CalendarEvent
	err    error
	block  bool
	called chan struct{}
}

func (f *fakeSyncer) SyncBooking(ctx context.Context, _ string, ev models.CalendarEvent) error {
	f.mu.Lock()
	f.calls = append(f.calls, ev)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
	last  interface{}
}

func (r *recordingNotifier) Notify(_ context.Context, kind string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.last = payload
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func syncRequest() domain.SyncRequest {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return domain.SyncRequest{
		Booking: &models.Booking{
			ID: "bk-1", PropertyID: "villa", CustomerID: "c1", GuestCount: 2,
			StartDate: start, EndDate: start.AddDate(0, 0, 3), Status: models.StatusConfirmed,
		},
		Property: &models.Property{ID: "villa", Name: "Seaside Villa", GoogleCalendarID: "cal-villa"},
		Customer: &models.Customer{ID: "c1", Name: "Anna", Email: "anna@example.com"},
	}
}

func taskStatus(t *testing.T, db *database.DB, id int64) *models.SyncTask {
	t.Helper()
	task, err := db.GetSyncTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func TestDispatch_SkipsPropertyWithoutCalendar(t *testing.T) {
	db := newTestDB(t)
	w := NewCalendarWorker(db, &fakeSyncer{}, nil, nil, Options{}, nil)

	req := syncRequest()
	req.Property.GoogleCalendarID = ""
	require.NoError(t, w.Dispatch(context.Background(), req))

	pending, err := db.GetPendingSyncTasks(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Error(t, w.Dispatch(context.Background(), domain.SyncRequest{}))
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	syncer := &fakeSyncer{}
	rec := &recordingNotifier{}
	w := NewCalendarWorker(db, syncer, nil, rec, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Dispatch(ctx, syncRequest()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)

	stored := taskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncTaskCompleted, stored.Status)
	assert.Equal(t, "cal-villa", stored.CalendarID)
	require.Equal(t, 1, syncer.count())
	assert.Equal(t, "Seaside Villa: Anna", syncer.calls[0].Summary)
	assert.Equal(t, []string{notify.KindCalendarSyncOK}, rec.kinds)
}

func TestProcessTaskFailure_DeadLetter(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	syncer := &fakeSyncer{err: &domain.SyncError{Detail: "google api 403: forbidden"}}
	rec := &recordingNotifier{}
	w := NewCalendarWorker(db, syncer, client, rec, Options{QueueKey: "q", DeadLetterKey: "dlq"}, nil)
	ctx := context.Background()

	require.NoError(t, w.Dispatch(ctx, syncRequest()))
	task, ok := w.tryRedis(ctx)
	require.True(t, ok)

	w.processTask(ctx, &task)

	stored := taskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncTaskFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "google api 403: forbidden", *stored.LastError)

	dead, err := s.List("dlq")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var deadTask models.SyncTask
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &deadTask))
	assert.Equal(t, "bk-1", deadTask.BookingID)

	assert.Equal(t, []string{notify.KindCalendarSyncFailed}, rec.kinds)
	assert.Contains(t, rec.last.(notify.SyncOutcome).Error, "403")
}

func TestProcessTaskTimeout(t *testing.T) {
	db := newTestDB(t)
	syncer := &fakeSyncer{block: true}
	w := NewCalendarWorker(db, syncer, nil, nil, Options{Timeout: 30 * time.Millisecond}, nil)
	ctx := context.Background()

	require.NoError(t, w.Dispatch(ctx, syncRequest()))
	task, _ := w.tryLocalQueue()

	started := time.Now()
	w.processTask(ctx, &task)
	assert.Less(t, time.Since(started), time.Second)

	stored := taskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncTaskFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, domain.SyncTimeoutDetail, *stored.LastError)
}

func TestProcessTask_NeverAttemptedTwice(t *testing.T) {
	db := newTestDB(t)
	syncer := &fakeSyncer{err: errors.New("boom")}
	w := NewCalendarWorker(db, syncer, nil, nil, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Dispatch(ctx, syncRequest()))
	task, _ := w.tryLocalQueue()

	w.processTask(ctx, &task)
	w.processTask(ctx, &task)
	assert.Equal(t, 0, w.drainPending(ctx))

	assert.Equal(t, 1, syncer.count())
	assert.Equal(t, "boom", *taskStatus(t, db, task.ID).LastError)
}

func TestStart_ProcessesRedisQueue(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	syncer := &fakeSyncer{}
	w := NewCalendarWorker(db, syncer, client, nil, Options{PollInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, w.Dispatch(ctx, syncRequest()))
	require.Eventually(t, func() bool { return syncer.count() == 1 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStart_PicksUpPendingAfterRestart(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload, _ := json.Marshal(models.CalendarEvent{BookingID: "bk-9", Summary: "x"})
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{
		TaskType: models.SyncTaskInsertEvent, BookingID: "bk-9", CalendarID: "cal", Payload: string(payload),
	}))

	syncer := &fakeSyncer{}
	w := NewCalendarWorker(db, syncer, nil, nil, Options{PollInterval: 20 * time.Millisecond}, nil)
	go w.Start(ctx)

	require.Eventually(t, func() bool { return syncer.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := db.GetPendingSyncTasks(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, syncer.count())
}
