package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDropoffIndexSearch(t *testing.T) {
	idx := NewDropoffIndex()

	a := DropoffRef{ID: uuid.New(), Embedding: []float32{1, 0, 0}, Timestamp: time.Now()}
	b := DropoffRef{ID: uuid.New(), Embedding: []float32{0, 1, 0}, Timestamp: time.Now()}
	c := DropoffRef{ID: uuid.New(), Embedding: []float32{0.9, 0.1, 0}, Timestamp: time.Now()}
	idx.Build([]DropoffRef{a, b, c})

	if idx.Count() != 3 {
		t.Fatalf("Count = %d; want 3", idx.Count())
	}

	neighbors, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors; want 2", len(neighbors))
	}
	if neighbors[0].ID != a.ID {
		t.Errorf("best neighbor = %v; want %v", neighbors[0].ID, a.ID)
	}
	if neighbors[0].Similarity < neighbors[1].Similarity {
		t.Error("neighbors not ordered best first")
	}
}

func TestDropoffIndexSkipsMismatchedDimensions(t *testing.T) {
	idx := NewDropoffIndex()
	idx.Build([]DropoffRef{
		{ID: uuid.New(), Embedding: []float32{1, 0, 0}},
		{ID: uuid.New(), Embedding: []float32{0, 1}}, // different width, skipped
	})

	if idx.Count() != 1 {
		t.Errorf("Count = %d; want 1", idx.Count())
	}
}

func TestDropoffIndexQueryDimensionMismatch(t *testing.T) {
	idx := NewDropoffIndex()
	idx.Build([]DropoffRef{{ID: uuid.New(), Embedding: []float32{1, 0, 0}}})

	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected error for mismatched query dimension")
	}
}

func TestDropoffIndexEmpty(t *testing.T) {
	idx := NewDropoffIndex()

	neighbors, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(neighbors) != 0 {
		t.Errorf("got %d neighbors; want 0", len(neighbors))
	}
}

func TestDropoffIndexAdd(t *testing.T) {
	idx := NewDropoffIndex()

	ref := DropoffRef{ID: uuid.New(), Embedding: []float32{0.5, 0.5}}
	idx.Add(ref)

	if idx.Count() != 1 {
		t.Fatalf("Count = %d; want 1", idx.Count())
	}

	neighbors, err := idx.Search([]float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != ref.ID {
		t.Errorf("unexpected neighbors: %v", neighbors)
	}
}
