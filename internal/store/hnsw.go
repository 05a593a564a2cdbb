package store

import (
	"errors"
	"log"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// DropoffIndex is an in-memory HNSW index over drop-off embeddings,
// used for the similar-events search. The pickup match decision itself
// uses an exact scan over recent drop-offs and does not go through this
// index. All embeddings in one index must share a dimension; entries
// with a different width are skipped at build time and logged.
type DropoffIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	refs  map[string]DropoffRef
	dim   int
}

func NewDropoffIndex() *DropoffIndex {
	return &DropoffIndex{
		refs: make(map[string]DropoffRef),
	}
}

// Build replaces the index contents with the given drop-offs.
func (x *DropoffIndex) Build(refs []DropoffRef) {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	x.graph = g
	x.refs = make(map[string]DropoffRef, len(refs))
	x.dim = 0

	for _, ref := range refs {
		x.addLocked(ref)
	}
}

// Add inserts a single drop-off into the index.
func (x *DropoffIndex) Add(ref DropoffRef) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = hnswMaxNeighbors
		g.Ml = 1.0 / float64(hnswMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		x.graph = g
	}
	x.addLocked(ref)
}

func (x *DropoffIndex) addLocked(ref DropoffRef) {
	if len(ref.Embedding) == 0 {
		return
	}
	if x.dim == 0 {
		x.dim = len(ref.Embedding)
	}
	if len(ref.Embedding) != x.dim {
		log.Printf("dropoff index: skipping event %s: embedding dim %d, index dim %d",
			ref.ID, len(ref.Embedding), x.dim)
		return
	}

	x.graph.Add(hnsw.MakeNode(ref.ID.String(), ref.Embedding))
	x.refs[ref.ID.String()] = ref
}

// Neighbor is a similar drop-off with its similarity score.
type Neighbor struct {
	ID         uuid.UUID `json:"id"`
	Similarity float64   `json:"similarity"`
}

// Search returns up to k drop-offs most similar to the query embedding,
// best first.
func (x *DropoffIndex) Search(query []float32, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.refs) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, errors.New("query embedding dimension does not match index")
	}

	nodes := x.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		ref, ok := x.refs[n.Key]
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			ID:         ref.ID,
			Similarity: reid.Similarity(query, ref.Embedding),
		})
	}
	return neighbors, nil
}

// Count returns the number of indexed drop-offs.
func (x *DropoffIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.refs)
}
