// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Items are popped in the order they were pushed.
func TestFIFOOrder(t *testing.T) {
	q := newFIFO[int]()
	for i := range 5 {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())
	for i := range 5 {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

// Close rejects pushes but lets consumers drain queued items.
func TestFIFOCloseDrains(t *testing.T) {
	q := newFIFO[string]()
	require.True(t, q.Push("a"))
	q.Close()
	assert.False(t, q.Push("b"))

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

// Close wakes up blocked consumers.
func TestFIFOCloseWakesConsumers(t *testing.T) {
	q := newFIFO[int]()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			assert.False(t, ok)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumers were not woken up")
	}
}

// Concurrent producers and consumers see every item exactly once.
func TestFIFOConcurrent(t *testing.T) {
	q := newFIFO[int]()
	const producers, perProducer = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		cwg  sync.WaitGroup
	)
	for range 4 {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := range producers {
		pwg.Add(1)
		go func() {
			defer pwg.Done()
			for i := range perProducer {
				q.Push(p*perProducer + i)
			}
		}()
	}
	pwg.Wait()
	q.Close()
	cwg.Wait()

	require.Len(t, seen, producers*perProducer)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}
