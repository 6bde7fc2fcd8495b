package keylock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	var (
		m       Map
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("guild-1")
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, m.size())
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	var m Map

	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := m.Lock("b")
		unlock()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, m.size())
	unlockA()
	unlockA()
	assert.Equal(t, 0, m.size())
}
