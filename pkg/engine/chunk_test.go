package engine

import (
	"testing"
)

func TestChunkEvenSplit(t *testing.T) {
	seq := []int{1, 2, 3, 4, 5, 6}
	chunks := chunk(seq, 2)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 2 {
			t.Errorf("chunk %d: expected length 2, got %d", i, len(c))
		}
	}
}

func TestChunkShortTail(t *testing.T) {
	seq := []string{"a", "b", "c", "d", "e"}
	chunks := chunk(seq, 2)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[2]) != 1 || chunks[2][0] != "e" {
		t.Errorf("expected final chunk [e], got %v", chunks[2])
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	seq := []int{10, 20, 30, 40, 50, 60, 70}
	chunks := chunk(seq, 3)

	var flat []int
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	for i, v := range flat {
		if v != seq[i] {
			t.Fatalf("order broken at index %d: expected %d, got %d", i, seq[i], v)
		}
	}
}

func TestChunkSizeLargerThanInput(t *testing.T) {
	seq := []int{1, 2}
	chunks := chunk(seq, 10)

	if len(chunks) != 1 || len(chunks[0]) != 2 {
		t.Fatalf("expected single chunk of 2, got %v", chunks)
	}
}

func TestChunkNonPositiveSize(t *testing.T) {
	seq := []int{1, 2, 3}

	for _, size := range []int{0, -1} {
		chunks := chunk(seq, size)
		if len(chunks) != 1 || len(chunks[0]) != 3 {
			t.Errorf("size %d: expected single chunk of 3, got %v", size, chunks)
		}
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if chunks := chunk([]int{}, 5); chunks != nil {
		t.Fatalf("expected nil for empty input, got %v", chunks)
	}
}
