package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleReaper_FiresWithCurrentGeneration(t *testing.T) {
	var mu sync.Mutex
	r := &IdleReaper{}
	fired := make(chan bool, 1)

	mu.Lock()
	r.Arm(10*time.Millisecond, func(gen uint64) {
		mu.Lock()
		defer mu.Unlock()
		fired <- r.Current(gen)
	})
	assert.True(t, r.Armed())
	mu.Unlock()

	select {
	case current := <-fired:
		assert.True(t, current)
	case <-time.After(time.Second):
		t.Fatal("reaper did not fire")
	}
}

func TestIdleReaper_DisarmCancels(t *testing.T) {
	r := &IdleReaper{}
	fired := make(chan struct{}, 1)

	r.Arm(20*time.Millisecond, func(uint64) { fired <- struct{}{} })
	r.Disarm()
	assert.False(t, r.Armed())

	select {
	case <-fired:
		t.Fatal("disarmed reaper fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestIdleReaper_StaleGenerationAfterRearm(t *testing.T) {
	r := &IdleReaper{}
	r.Arm(time.Hour, func(uint64) {})
	first := r.gen

	r.Arm(time.Hour, func(uint64) {})
	assert.False(t, r.Current(first))
	assert.True(t, r.Current(r.gen))

	r.Disarm()
	assert.False(t, r.Current(r.gen))
}
