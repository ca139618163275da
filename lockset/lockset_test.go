package lockset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockExcludesConcurrentHolders(t *testing.T) {
	s := New[uint64]()
	var mu sync.Mutex
	inCritical := 0
	maxConcurrent := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := s.Lock(7)
			defer h.Unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxConcurrent {
				maxConcurrent = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxConcurrent)
}

func TestRLockAllowsConcurrentReaders(t *testing.T) {
	s := New[uint64]()
	start := make(chan struct{})
	var wg sync.WaitGroup
	held := make(chan struct{}, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			h := s.RLock(1)
			held <- struct{}{}
			h.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	assert.Len(t, held, 5)
}

func TestEntryPrunedAfterLastRelease(t *testing.T) {
	s := New[string]()
	h := s.Lock("k")
	require.Equal(t, 1, s.Len())
	h.Unlock()
	assert.Equal(t, 0, s.Len())
}

func TestDifferentKeysDoNotBlockEachOther(t *testing.T) {
	s := New[int]()
	h1 := s.Lock(1)
	done := make(chan struct{})
	go func() {
		h2 := s.Lock(2)
		h2.Unlock()
		close(done)
	}()
	<-done
	h1.Unlock()
}
