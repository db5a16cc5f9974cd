package api

import (
	"fmt"
	"testing"
)

func TestFailureRingEmpty(t *testing.T) {
	r := newFailureRing(4)
	if got := r.recent(10); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestFailureRingOrder(t *testing.T) {
	r := newFailureRing(4)
	for i := 0; i < 3; i++ {
		r.add(FailureRecord{Op: fmt.Sprintf("op%d", i)})
	}

	got := r.recent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, rec := range got {
		want := fmt.Sprintf("op%d", i)
		if rec.Op != want {
			t.Errorf("record %d op = %q, want %q", i, rec.Op, want)
		}
	}
}

// TestFailureRingWrap verifies oldest records are evicted once the ring
// fills, and recent() still returns oldest-first.
func TestFailureRingWrap(t *testing.T) {
	r := newFailureRing(3)
	for i := 0; i < 5; i++ {
		r.add(FailureRecord{Op: fmt.Sprintf("op%d", i)})
	}

	got := r.recent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 records after wrap, got %d", len(got))
	}
	for i, want := range []string{"op2", "op3", "op4"} {
		if got[i].Op != want {
			t.Errorf("record %d op = %q, want %q", i, got[i].Op, want)
		}
	}
}

func TestFailureRingLimit(t *testing.T) {
	r := newFailureRing(8)
	for i := 0; i < 6; i++ {
		r.add(FailureRecord{Op: fmt.Sprintf("op%d", i)})
	}

	got := r.recent(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Op != "op4" || got[1].Op != "op5" {
		t.Errorf("expected two newest records, got %v", got)
	}
}
