package analyzer

import "sync/atomic"

// ScanLock rejects overlapping directory scans without blocking
type ScanLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *ScanLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *ScanLock) Release() {
	l.state.Store(0)
}
