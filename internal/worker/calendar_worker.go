// Package worker runs the asynchronous external calendar sync.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options tunes the worker; zero values fall back to defaults.
type Options struct {
	Timeout       time.Duration
	QueueKey      string
	DeadLetterKey string
	PollInterval  time.Duration
	BatchSize     int
}

// CalendarWorker pushes confirmed bookings to external calendars. Each task is
// attempted exactly once under a deadline; the outcome is recorded and never
// touches the booking itself.
type CalendarWorker struct {
	repo          domain.SyncQueueRepository
	syncer        domain.CalendarSyncer
	redis         *redis.Client
	notifier      domain.Notifier
	queue         chan models.SyncTask
	timeout       time.Duration
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewCalendarWorker(
	repo domain.SyncQueueRepository,
	syncer domain.CalendarSyncer,
	redisClient *redis.Client,
	notifier domain.Notifier,
	opts Options,
	logger *zerolog.Logger,
) *CalendarWorker {
	if opts.Timeout <= 0 {
		opts.Timeout = models.DefaultSyncTimeout * time.Second
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "staybook:calendar_sync"
	}
	if opts.DeadLetterKey == "" {
		opts.DeadLetterKey = opts.QueueKey + ":dead"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "calendar_worker").Logger()

	return &CalendarWorker{
		repo:          repo,
		syncer:        syncer,
		redis:         redisClient,
		notifier:      notifier,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		timeout:       opts.Timeout,
		redisQueueKey: opts.QueueKey,
		deadLetterKey: opts.DeadLetterKey,
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        &l,
	}
}

// Dispatch persists a sync task for the booking and schedules it. Properties
// without a calendar id are skipped.
func (w *CalendarWorker) Dispatch(ctx context.Context, req domain.SyncRequest) error {
	if req.Booking == nil {
		return errors.New("booking is required")
	}
	if !req.Property.SyncEnabled() {
		return nil
	}

	payload, err := json.Marshal(models.NewCalendarEvent(req.Booking, req.Property, req.Customer))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:   models.SyncTaskInsertEvent,
		BookingID:  req.Booking.ID,
		CalendarID: req.Property.GoogleCalendarID,
		Payload:    string(payload),
		Status:     models.SyncTaskPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := w.repo.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		err := w.pushRedis(ctx, w.redisQueueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left for polling")
	}
	return nil
}

// Start runs the consume loop until ctx is done: local queue, then Redis, then
// pending tasks left in the store.
func (w *CalendarWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("timeout", w.timeout).Msg("calendar worker started")
	defer w.logger.Info().Msg("calendar worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.drainPending(ctx); n == 0 {
			w.sleep(ctx)
		}
	}
}

func (w *CalendarWorker) drainPending(ctx context.Context) int {
	tasks, err := w.repo.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *CalendarWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *CalendarWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *CalendarWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

// processTask makes the single attempt for a task. Tasks already settled by an
// earlier pick-up are skipped so a task is never attempted twice.
func (w *CalendarWorker) processTask(ctx context.Context, task *models.SyncTask) {
	current, err := w.repo.GetSyncTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("load sync task")
		return
	}
	if current.Status != models.SyncTaskPending {
		return
	}

	var event models.CalendarEvent
	if err := json.Unmarshal([]byte(current.Payload), &event); err != nil {
		w.finish(ctx, current, &domain.SyncError{Detail: "decode payload: " + err.Error()}, 0)
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, w.timeout)
	started := time.Now()
	err = w.syncer.SyncBooking(attemptCtx, current.CalendarID, event)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		err = &domain.SyncError{Detail: domain.SyncTimeoutDetail}
	}
	cancel()

	w.finish(ctx, current, err, time.Since(started))
}

func (w *CalendarWorker) finish(ctx context.Context, task *models.SyncTask, syncErr error, took time.Duration) {
	outcome := notify.SyncOutcome{BookingID: task.BookingID, CalendarID: task.CalendarID}

	if syncErr == nil {
		metrics.ObserveSync("success", took)
		if err := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncTaskCompleted, ""); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
		}
		w.notify(ctx, notify.KindCalendarSyncOK, outcome)
		return
	}

	var se *domain.SyncError
	if !errors.As(syncErr, &se) {
		se = &domain.SyncError{Detail: syncErr.Error()}
	}
	result := "failed"
	if se.Detail == domain.SyncTimeoutDetail {
		result = "timeout"
	}
	metrics.ObserveSync(result, took)

	w.logger.Warn().Str("booking_id", task.BookingID).Int64("task_id", task.ID).Str("detail", se.Detail).Msg("calendar sync failed")
	if err := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncTaskFailed, se.Detail); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}

	detail := se.Detail
	task.Status = models.SyncTaskFailed
	task.LastError = &detail
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
		}
	}

	outcome.Error = se.Error()
	w.notify(ctx, notify.KindCalendarSyncFailed, outcome)
}

func (w *CalendarWorker) notify(ctx context.Context, kind string, outcome notify.SyncOutcome) {
	if w.notifier != nil {
		w.notifier.Notify(ctx, kind, outcome)
	}
}

func (w *CalendarWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
