package rowlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockIsReentrantPerHolder(t *testing.T) {
	reg := New()
	h := reg.Holder()
	h.Lock("product:1")
	h.Lock("product:1")
	require.True(t, h.Holds("product:1"))
	h.ReleaseAll()
	require.False(t, h.Holds("product:1"))
}

func TestLockSerializesHolders(t *testing.T) {
	reg := New()
	first := reg.Holder()
	first.Lock("seq:invoice")

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second := reg.Holder()
		second.Lock("seq:invoice")
		close(acquired)
		second.ReleaseAll()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	first.ReleaseAll()
	wg.Wait()
	_, open := <-acquired
	assert.False(t, open)
}
