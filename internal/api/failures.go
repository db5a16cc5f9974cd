package api

import (
	"sync"
	"time"
)

// failureRingCapacity bounds how many recent failures are kept for the
// doctor command.
const failureRingCapacity = 50

// FailureRecord describes one failed backend call.
type FailureRecord struct {
	Op     string    `json:"op"`
	Status int       `json:"status,omitempty"`
	Err    string    `json:"error"`
	At     time.Time `json:"at"`
}

// failureRing is a fixed-capacity ring of recent call failures. Writers
// overwrite the oldest entry once full.
type failureRing struct {
	mu    sync.Mutex
	items []FailureRecord
	next  int
	full  bool
}

func newFailureRing(capacity int) *failureRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &failureRing{items: make([]FailureRecord, capacity)}
}

func (r *failureRing) add(rec FailureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = rec
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

// recent returns up to n records, oldest first.
func (r *failureRing) recent(n int) []FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.items)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]FailureRecord, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.items)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}
