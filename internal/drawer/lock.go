package drawer

import "sync/atomic"

// TransactionLock admits at most one drawer operation at a time.
// It has no timeout; holders must release it on every path.
type TransactionLock struct {
	held atomic.Bool
}

// NewTransactionLock creates an unlocked lock
func NewTransactionLock() *TransactionLock {
	return &TransactionLock{}
}

// Lock acquires the lock and reports whether it was free
func (l *TransactionLock) Lock() bool {
	return l.held.CompareAndSwap(false, true)
}

// Unlock releases the lock
func (l *TransactionLock) Unlock() {
	l.held.Store(false)
}

// IsLocked reports whether an operation holds the lock
func (l *TransactionLock) IsLocked() bool {
	return l.held.Load()
}

// ForceUnlock releases the lock regardless of holder, for error recovery
func (l *TransactionLock) ForceUnlock() {
	l.held.Store(false)
}
