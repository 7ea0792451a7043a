package service

import (
	"sync"
	"testing"
	"time"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	locks := newKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}

	// Fully released keys can be taken again
	unlock := locks.Lock(7)
	unlock()
}

func TestKeyLock_BlocksUntilReleased(t *testing.T) {
	locks := newKeyLock()

	unlock := locks.Lock(3)
	acquired := make(chan struct{})
	go func() {
		second := locks.Lock(3)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatalf("expected the second caller to wait")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("expected the second caller to acquire after release")
	}
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	locks := newKeyLock()

	unlockA := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(2)
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}
