package models

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

const (
	SyncTaskPending   = "pending"
	SyncTaskCompleted = "completed"
	SyncTaskFailed    = "failed"

	SyncTaskInsertEvent = "insert_event"
)

const (
	// DefaultSyncTimeout bounds a single external calendar call, in seconds.
	DefaultSyncTimeout = 10

	// DefaultIdempotencyTTL keeps create idempotency keys, in seconds.
	DefaultIdempotencyTTL = 24 * 60 * 60

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 1000

	// StatusFilterAll disables status filtering.
	StatusFilterAll = "all"
)
