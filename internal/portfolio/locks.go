package portfolio

import "sync"

// profileLocks serializes mutations per profile. The database transaction
// alone is not enough at read-committed isolation: two concurrent trades can
// both read the pre-debit balance and lose an update. All write paths for a
// profile take its lock for the duration of the read-modify-write.
type profileLocks struct {
	locks sync.Map // userID -> *sync.Mutex
}

// lock acquires the mutex for userID and returns the unlock func.
func (l *profileLocks) lock(userID string) func() {
	v, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
