package rag

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/coder/hnsw"
)

const (
	// indexMaxNeighbors entspricht dem Parameter M des HNSW-Graphen
	indexMaxNeighbors = 16
	// indexEfSearch ist die Größe der Kandidatenliste bei der Suche
	indexEfSearch = 64
	// indexSeed macht den Graphaufbau reproduzierbar
	indexSeed = 42
)

// ErrDimensionMismatch wird zurückgegeben, wenn Vektoren unterschiedliche Länge haben
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Hit ist ein Suchergebnis
type Hit struct {
	Chunk    Chunk
	Distance float32
	position int
}

// Index ist ein Vektorindex über Chunks. Er wird pro Frage neu aufgebaut.
type Index struct {
	graph  *hnsw.Graph[int]
	chunks []Chunk
	dim    int
}

// BuildIndex baut den Index aus Chunks und zugehörigen Embeddings
func BuildIndex(chunks []Chunk, embeddings [][]float32) (*Index, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.CosineDistance
	g.Rng = rand.New(rand.NewSource(indexSeed))

	idx := &Index{graph: g, chunks: chunks}
	for i, emb := range embeddings {
		if idx.dim == 0 {
			idx.dim = len(emb)
		}
		if len(emb) == 0 || len(emb) != idx.dim {
			return nil, fmt.Errorf("%w: chunk %d has %d values, expected %d", ErrDimensionMismatch, i, len(emb), idx.dim)
		}
		g.Add(hnsw.MakeNode(i, emb))
	}

	return idx, nil
}

// Len gibt die Anzahl der indizierten Chunks zurück
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Search findet die k ähnlichsten Chunks. Bei gleichem Abstand entscheidet die Chunk-Reihenfolge.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d values, expected %d", ErrDimensionMismatch, len(query), idx.dim)
	}
	if k > len(idx.chunks) {
		k = len(idx.chunks)
	}

	neighbors := idx.graph.Search(query, k)

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		hits = append(hits, Hit{
			Chunk:    idx.chunks[n.Key],
			Distance: hnsw.CosineDistance(query, n.Value),
			position: n.Key,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].position < hits[j].position
	})

	return hits, nil
}
