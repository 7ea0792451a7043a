package service

import (
	"log"
	"strconv"

	"github.com/moby/locker"
)

// keyLock hands out one mutex per reminder id. The underlying locker drops
// an entry once nobody holds or waits on it.
type keyLock struct {
	locks *locker.Locker
}

func newKeyLock() *keyLock {
	return &keyLock{locks: locker.New()}
}

// Lock blocks until the key is free and returns the matching unlock func.
func (k *keyLock) Lock(key int64) func() {
	name := strconv.FormatInt(key, 10)
	k.locks.Lock(name)
	return func() {
		if err := k.locks.Unlock(name); err != nil {
			log.Printf("Failed to release lock of reminder %s: %v", name, err)
		}
	}
}
