package sparse

import (
	"testing"
)

func TestSparseSet_Basic(t *testing.T) {
	s := NewSparseSet(100)

	// Empty set
	if !s.IsEmpty() {
		t.Error("new set should be empty")
	}
	if s.Contains(0) {
		t.Error("empty set should not contain 0")
	}

	// Insert and contain
	if !s.Insert(5) {
		t.Error("first insert should return true")
	}
	if !s.Contains(5) {
		t.Error("set should contain 5 after insert")
	}
	if s.Insert(5) {
		t.Error("duplicate insert should return false")
	}
	if s.Len() != 1 {
		t.Errorf("len should be 1, got %d", s.Len())
	}

	// Multiple inserts
	s.Insert(10)
	s.Insert(3)
	s.Insert(7)
	if s.Len() != 4 {
		t.Errorf("len should be 4, got %d", s.Len())
	}

	// Clear
	s.Clear()
	if !s.IsEmpty() {
		t.Error("set should be empty after clear")
	}
	if s.Contains(5) {
		t.Error("cleared set should not contain 5")
	}
}

func TestSparseSet_InsertionOrder(t *testing.T) {
	s := NewSparseSet(100)
	s.Insert(5)
	s.Insert(2)
	s.Insert(8)
	s.Insert(1)

	expected := []uint32{5, 2, 8, 1}
	values := s.Values()
	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range expected {
		if values[i] != v || s.At(i) != v {
			t.Errorf("position %d: expected %d, got %d", i, v, values[i])
		}
	}
}

func TestSparseSet_ClearPreservesCapacity(t *testing.T) {
	s := NewSparseSet(64)
	for i := uint32(0); i < 64; i++ {
		s.Insert(i)
	}
	s.Clear()
	if s.Capacity() != 64 {
		t.Errorf("capacity should stay 64, got %d", s.Capacity())
	}

	// Stale sparse entries must not produce false positives after Clear
	s.Insert(63)
	for i := uint32(0); i < 63; i++ {
		if s.Contains(i) {
			t.Fatalf("cleared set reports stale value %d", i)
		}
	}
	if !s.Contains(63) {
		t.Error("set should contain 63")
	}
}

func TestSparseSet_ContainsOutOfBounds(t *testing.T) {
	s := NewSparseSet(10)
	s.Insert(9)
	if s.Contains(10) || s.Contains(1<<31) {
		t.Error("out-of-range values must not be contained")
	}
}

func TestSparseSet_CrossValidation(t *testing.T) {
	s := NewSparseSet(1000)
	ref := make(map[uint32]bool)

	for i := uint32(0); i < 1000; i += 7 {
		v := (i * 31) % 1000
		if s.Insert(v) == ref[v] {
			t.Fatalf("Insert(%d) disagrees with reference", v)
		}
		ref[v] = true
	}
	if s.Len() != len(ref) {
		t.Fatalf("len = %d, reference has %d", s.Len(), len(ref))
	}
	for v := uint32(0); v < 1000; v++ {
		if s.Contains(v) != ref[v] {
			t.Errorf("Contains(%d) = %v, want %v", v, s.Contains(v), ref[v])
		}
	}
}

func BenchmarkSparseSet_Insert(b *testing.B) {
	s := NewSparseSet(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Insert(uint32(i % 1024))
		if i%1024 == 1023 {
			s.Clear()
		}
	}
}

func BenchmarkSparseSet_Contains(b *testing.B) {
	s := NewSparseSet(1024)
	for i := uint32(0); i < 1024; i += 2 {
		s.Insert(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Contains(uint32(i % 1024))
	}
}
