package wsupervisor

import "time"

// Timer is a cancellable, single-shot delayed callback. Dropping a Timer
// without calling Stop still lets it fire; only calling Stop before it fires
// cancels it.
type Timer interface {
	Stop() bool
}

// Clock is the external collaborator providing monotonic time and
// schedule-after-delay with cancellation, named but left unshaped by
// spec.md §2/§6.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// NewSystemClock returns a Clock backed directly by the time package.
func NewSystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
