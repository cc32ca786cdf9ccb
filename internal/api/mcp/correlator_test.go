package mcp

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelator_IDsStrictlyIncrease(t *testing.T) {
	c := newCorrelator()
	prev := int64(0)
	for i := 0; i < 5; i++ {
		id, _ := c.register()
		n, err := strconv.ParseInt(id, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
	assert.Equal(t, int64(5), prev, "ids start at 1")
}

func TestCorrelator_ConcurrentRegisterYieldsUniqueIDs(t *testing.T) {
	c := newCorrelator()
	const n = 200

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := c.register()
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, c.inFlight())
}

func TestCorrelator_ResolveOnce(t *testing.T) {
	c := newCorrelator()
	id, done := c.register()

	assert.True(t, c.resolve(Response{ID: id, Result: []byte(`{}`)}))
	resp := <-done
	assert.Equal(t, id, resp.ID)

	assert.False(t, c.resolve(Response{ID: id}), "a second reply for the same id is dropped")
	assert.Equal(t, 0, c.inFlight())
}

func TestCorrelator_LateResponseAfterRemoveIsDropped(t *testing.T) {
	c := newCorrelator()
	id, done := c.register()
	c.remove(id)

	assert.False(t, c.resolve(Response{ID: id}))
	select {
	case <-done:
		t.Fatal("removed request must not be resolved")
	default:
	}

	next, _ := c.register()
	assert.NotEqual(t, id, next, "ids are never reused")
}

func TestCorrelator_OutOfOrderResolution(t *testing.T) {
	c := newCorrelator()
	idA, doneA := c.register()
	idB, doneB := c.register()

	require.True(t, c.resolve(Response{ID: idB}))
	require.True(t, c.resolve(Response{ID: idA}))

	assert.Equal(t, idB, (<-doneB).ID)
	assert.Equal(t, idA, (<-doneA).ID)
}
