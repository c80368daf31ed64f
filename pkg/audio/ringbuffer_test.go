package audio

import "testing"

func TestRingBufferInvariant(t *testing.T) {
	r := NewRingBuffer(16)
	if r.Available()+r.SpaceAvailable() != r.Capacity() {
		t.Fatalf("invariant violated at start")
	}

	if err := r.Write([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Available()+r.SpaceAvailable() != r.Capacity() {
		t.Fatalf("invariant violated after write")
	}

	out := make([]float32, 2)
	n := r.Read(out)
	if n != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected read result: n=%d out=%v", n, out)
	}
	if r.Available()+r.SpaceAvailable() != r.Capacity() {
		t.Fatalf("invariant violated after read")
	}
}

func TestRingBufferOverflowRejected(t *testing.T) {
	r := NewRingBuffer(4)
	before := r.GetStats()

	err := r.Write([]float32{1, 2, 3, 4, 5})
	if err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if r.Available() != 0 {
		t.Fatalf("state should be unchanged on overflow, available=%d", r.Available())
	}

	after := r.GetStats()
	if after.Overruns != before.Overruns+1 {
		t.Fatalf("expected overrun counter to increment")
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	r.Write([]float32{1, 2, 3})
	out := make([]float32, 3)
	r.Read(out)

	if err := r.Write([]float32{4, 5, 6}); err != nil {
		t.Fatalf("unexpected error after wraparound: %v", err)
	}
	out2 := make([]float32, 3)
	n := r.Read(out2)
	if n != 3 || out2[0] != 4 || out2[1] != 5 || out2[2] != 6 {
		t.Fatalf("unexpected wraparound read: %v", out2)
	}
}
