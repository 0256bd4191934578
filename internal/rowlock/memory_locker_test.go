package rowlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker(nil)

	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithRowLock(context.Background(), "orders", "o-1", Options{Timeout: 5 * time.Second}, func(tx *gorm.DB) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "critical sections must never overlap")
}

func TestMemoryLockerNoWait(t *testing.T) {
	locker := NewMemoryLocker(nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithRowLock(context.Background(), "orders", "o-1", Options{}, func(tx *gorm.DB) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := locker.WithRowLock(context.Background(), "orders", "o-1", Options{NoWait: true}, func(tx *gorm.DB) error {
		t.Fatal("critical section must not run when the row is already held")
		return nil
	})
	le, ok := AsLockError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonAlreadyLocked, le.Reason)
	assert.True(t, IsConflict(err))

	close(release)
}

func TestMemoryLockerTimeout(t *testing.T) {
	locker := NewMemoryLocker(nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithRowLock(context.Background(), "orders", "o-1", Options{}, func(tx *gorm.DB) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	err := locker.WithRowLock(context.Background(), "orders", "o-1", Options{Timeout: 50 * time.Millisecond}, func(tx *gorm.DB) error {
		t.Fatal("critical section must not run after the wait timed out")
		return nil
	})
	le, ok := AsLockError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, le.Reason)
}

func TestMemoryLockerReleasesOnError(t *testing.T) {
	locker := NewMemoryLocker(nil)
	boom := errors.New("business failure")

	err := locker.WithRowLock(context.Background(), "orders", "o-1", Options{NoWait: true}, func(tx *gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// 上一次失败后锁必须已经释放
	err = locker.WithRowLock(context.Background(), "orders", "o-1", Options{NoWait: true}, func(tx *gorm.DB) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryLockerIndependentRows(t *testing.T) {
	locker := NewMemoryLocker(nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithRowLock(context.Background(), "orders", "o-1", Options{}, func(tx *gorm.DB) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	// 不同行之间不应互相阻塞
	err := locker.WithRowLock(context.Background(), "orders", "o-2", Options{NoWait: true}, func(tx *gorm.DB) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestLockErrorHelpers(t *testing.T) {
	timeoutErr := &Error{Table: "orders", ID: "o-1", Reason: ReasonTimeout}
	assert.True(t, IsConflict(timeoutErr))
	assert.False(t, IsNotFound(timeoutErr))

	notFoundErr := &Error{Table: "orders", ID: "o-1", Reason: ReasonNotFound}
	assert.True(t, IsNotFound(notFoundErr))
	assert.False(t, IsConflict(notFoundErr))

	assert.False(t, IsConflict(errors.New("plain")))

	_, ok := AsLockError(errors.New("plain"))
	assert.False(t, ok)
}
