// internal/services/locker.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// FoodLocker serializes price writes per food. The returned unlock func must
// be called exactly once.
type FoodLocker interface {
	Lock(ctx context.Context, foodID uuid.UUID) (unlock func(), err error)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalFoodLocker is an in-process keyed mutex for single-instance deployments.
type LocalFoodLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

func NewLocalFoodLocker() *LocalFoodLocker {
	return &LocalFoodLocker{locks: make(map[uuid.UUID]*lockEntry)}
}

func (l *LocalFoodLocker) Lock(ctx context.Context, foodID uuid.UUID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[foodID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[foodID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(foodID, entry)
		return nil, &ConflictError{Resource: "food", ID: foodID.String()}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(foodID, entry)
		})
	}, nil
}

func (l *LocalFoodLocker) release(foodID uuid.UUID, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, foodID)
	}
}

// RedisFoodLocker holds a redsync mutex per food so that several API instances
// never interleave writes to the same food.
type RedisFoodLocker struct {
	rs      *redsync.Redsync
	ttl     time.Duration
	retries int
}

func NewRedisFoodLocker(rdb *redis.Client, ttl time.Duration, retries int) *RedisFoodLocker {
	return &RedisFoodLocker{
		rs:      redsync.New(goredis.NewPool(rdb)),
		ttl:     ttl,
		retries: retries,
	}
}

func (l *RedisFoodLocker) Lock(ctx context.Context, foodID uuid.UUID) (func(), error) {
	mutex := l.rs.NewMutex(
		"food-price-lock:"+foodID.String(),
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.retries),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &ConflictError{Resource: "food", ID: foodID.String()}
		}
		return nil, &StorageError{Op: "acquire food lock", Err: err}
	}

	return func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			logrus.WithError(err).WithField("food_id", foodID).Warn("Failed to release food price lock")
		}
	}, nil
}
