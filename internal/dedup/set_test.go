package dedup

import (
	"fmt"
	"testing"
)

func TestExactSetFirstSeenWins(t *testing.T) {
	s := NewExactSet(0)

	if !s.Accept("evt_1") {
		t.Fatal("first occurrence must be accepted")
	}
	if s.Accept("evt_1") {
		t.Fatal("second occurrence must be dropped")
	}
	if !s.Accept("evt_2") {
		t.Fatal("distinct identifier must be accepted")
	}
	if s.Size() != 2 {
		t.Errorf("expected size 2, got %d", s.Size())
	}
}

func TestExactSetDuplicateAtAnyPosition(t *testing.T) {
	s := NewExactSet(16)

	ids := []string{"a", "b", "c", "a", "d", "c", "a"}
	accepted := 0
	for _, id := range ids {
		if s.Accept(id) {
			accepted++
		}
	}
	if accepted != 4 {
		t.Errorf("expected 4 accepted, got %d", accepted)
	}
}

func TestBloomSetNeverAcceptsTrueDuplicate(t *testing.T) {
	s := NewBloomSet(1000, 0.01)

	for i := 0; i < 500; i++ {
		s.Accept(fmt.Sprintf("evt_%04d", i))
	}
	for i := 0; i < 500; i++ {
		if s.Accept(fmt.Sprintf("evt_%04d", i)) {
			t.Fatalf("bloom set accepted a true duplicate: evt_%04d", i)
		}
	}
}

func TestBloomSetAcceptsMostDistinct(t *testing.T) {
	s := NewBloomSet(10_000, 0.01)

	for i := 0; i < 10_000; i++ {
		s.Accept(fmt.Sprintf("evt_%06d", i))
	}

	// A handful of false-positive drops is the documented tradeoff; losing
	// more than a few percent means the sizing is wrong.
	if s.Size() < 9_700 {
		t.Errorf("bloom set dropped too many distinct identifiers: accepted %d of 10000", s.Size())
	}
}
