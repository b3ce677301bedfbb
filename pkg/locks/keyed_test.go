package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), time.Second, "teacher:t1:MONDAY")
	require.NoError(t, err)

	_, err = km.Acquire(context.Background(), 50*time.Millisecond, "teacher:t1:MONDAY")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := km.Acquire(context.Background(), time.Second, "teacher:t1:MONDAY")
	require.NoError(t, err)
	release2()
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	release1, err := km.Acquire(context.Background(), time.Second, "teacher:t1:MONDAY")
	require.NoError(t, err)
	defer release1()

	release2, err := km.Acquire(context.Background(), 50*time.Millisecond, "room:r1:MONDAY")
	require.NoError(t, err)
	release2()
}

func TestKeyedMutexOrderedAcquisitionAvoidsDeadlock(t *testing.T) {
	km := NewKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		keys := []string{"room:r1:MONDAY", "teacher:t1:MONDAY"}
		if i%2 == 1 {
			keys = []string{"teacher:t1:MONDAY", "room:r1:MONDAY"}
		}
		go func(keys []string) {
			defer wg.Done()
			release, err := km.Acquire(context.Background(), 5*time.Second, keys...)
			if err != nil {
				return
			}
			counter++
			release()
		}(keys)
	}
	wg.Wait()
	assert.Equal(t, 16, counter)
}

func TestKeyedMutexDuplicateKeys(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), time.Second, "k", "k", "k")
	require.NoError(t, err)
	release()

	release, err = km.Acquire(context.Background(), time.Second, "k")
	require.NoError(t, err)
	release()
}

func TestKeyedMutexContextCancelled(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), time.Second, "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = km.Acquire(ctx, time.Second, "k")
	require.ErrorIs(t, err, context.Canceled)
}
