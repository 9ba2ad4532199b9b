package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockStore) Put(ctx context.Context, key, bookingID string) error {
	args := m.Called(ctx, key, bookingID)
	return args.Error(0)
}

func TestFailoverIdempotencyStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	store := NewFailoverIdempotencyStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, "k1").Return("bk-1", true, nil).Once()

		id, ok, err := store.Get(ctx, "k1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "bk-1", id)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Get", ctx, "k2").Return("", false, errors.New("fail")).Once()
		fallback.On("Get", ctx, "k2").Return("bk-2", true, nil).Once()

		id, ok, err := store.Get(ctx, "k2")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "bk-2", id)
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Put", ctx, "k3", "bk-3").Return(nil).Once()
		fallback.On("Get", ctx, "k3").Return("bk-3", true, nil).Once()

		assert.NoError(t, store.Put(ctx, "k3", "bk-3"))
		_, _, err := store.Get(ctx, "k3")
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		store.isDown.Store(true)
		store.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Get", ctx, "k4").Return("bk-4", true, nil).Once()

		id, _, err := store.Get(ctx, "k4")
		assert.NoError(t, err)
		assert.Equal(t, "bk-4", id)
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		store.isDown.Store(true)
		store.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Get", ctx, "k5").Return("", false, errors.New("still fail")).Once()
		fallback.On("Get", ctx, "k5").Return("", false, nil).Once()

		_, ok, err := store.Get(ctx, "k5")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("PutFailover", func(t *testing.T) {
		store.isDown.Store(false)
		primary.On("Put", ctx, "k6", "bk-6").Return(errors.New("fail")).Once()
		fallback.On("Put", ctx, "k6", "bk-6").Return(nil).Once()

		assert.NoError(t, store.Put(ctx, "k6", "bk-6"))
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
