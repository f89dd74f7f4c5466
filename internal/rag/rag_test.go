package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"facerag/internal/core/models"
	"facerag/internal/db"
	"facerag/internal/db/repository"
	"facerag/internal/util/timezone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const embedDims = 4096

// wordEmbedder bildet Wörter per Hash auf Dimensionen ab
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, embedDims+1)
		vec[embedDims] = 0.1
		for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !(r >= 'a' && r <= 'z')
		}) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%embedDims]++
		}
		out[i] = vec
	}
	return out, nil
}

type recordingGenerator struct {
	prompts []string
	answer  string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

func newRepoWith(t *testing.T, names ...string) repository.Repository {
	t.Helper()
	gdb, err := db.Open(":memory:")
	require.NoError(t, err)
	repo := repository.NewSQLiteRepository(gdb)
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	for i, name := range names {
		require.NoError(t, repo.CreateFace(context.Background(), &models.FaceRecord{
			Name:      name,
			FaceImage: []byte{1},
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	return repo
}

func TestBuildDocuments(t *testing.T) {
	timezone.Initialize("UTC")
	docs := BuildDocuments([]models.FaceRecord{
		{ID: 3, Name: "Alice", Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	})
	require.Len(t, docs, 1)
	assert.Equal(t, uint(3), docs[0].RecordID)
	assert.Equal(t, "Name: Alice, RegistrationDate: 2024-03-01 09:30:00", docs[0].Text)
}

func TestSplitter(t *testing.T) {
	s := NewSplitter(500, 50)

	chunks, err := s.Split([]Document{{RecordID: 1, Text: "Name: Alice, RegistrationDate: 2024-03-01 09:30:00"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, uint(1), chunks[0].RecordID)

	long := strings.Repeat("lorem ipsum dolor sit amet ", 60)
	chunks, err = s.Split([]Document{{RecordID: 2, Text: long}})
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 500)
	}
}

func TestIndex_Search(t *testing.T) {
	chunks := []Chunk{{RecordID: 1, Text: "a"}, {RecordID: 2, Text: "b"}, {RecordID: 3, Text: "c"}}
	embeddings := [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}

	idx, err := BuildIndex(chunks, embeddings)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, uint(1), hits[0].Chunk.RecordID)
	assert.Equal(t, uint(3), hits[1].Chunk.RecordID)

	hits, err = idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = BuildIndex(chunks, [][]float32{{1, 0}, {1}, {1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestService_Ask(t *testing.T) {
	timezone.Initialize("UTC")
	repo := newRepoWith(t, "Alice", "Bob", "Carol", "Dave", "Eve")
	embedder := &wordEmbedder{}
	generator := &recordingGenerator{answer: "Alice registered on 2024-03-01."}
	svc := NewService(repo, embedder, generator, Options{ChunkSize: 500, ChunkOverlap: 50, TopK: 4, EmbedBatch: 2}, nil)

	answer, err := svc.Ask(context.Background(), "When was alice registered?")
	require.NoError(t, err)
	assert.Equal(t, "Alice registered on 2024-03-01.", answer.Text)
	require.Len(t, answer.Context, 4)
	assert.Equal(t, "Name: Alice, RegistrationDate: 2024-03-01 09:30:00", answer.Context[0].Text)

	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "Context:\nName: Alice, RegistrationDate: 2024-03-01 09:30:00\n"))
	assert.True(t, strings.HasSuffix(prompt, "\n\nQuestion: When was alice registered?\nAnswer:"))

	// 5 Chunks in Batches zu 2 plus die Frage
	assert.Equal(t, 4, embedder.calls)
}

func TestService_DeterministicRetrieval(t *testing.T) {
	repo := newRepoWith(t, "Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace")
	svc := NewService(repo, &wordEmbedder{}, &recordingGenerator{}, Options{ChunkSize: 500, ChunkOverlap: 50, TopK: 4}, nil)

	first, err := svc.Retrieve(context.Background(), "Who is grace?")
	require.NoError(t, err)
	second, err := svc.Retrieve(context.Background(), "Who is grace?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestService_EmptyStore(t *testing.T) {
	generator := &recordingGenerator{answer: "I don't know."}
	svc := NewService(newRepoWith(t), &wordEmbedder{}, generator, Options{ChunkSize: 500, ChunkOverlap: 50}, nil)

	answer, err := svc.Ask(context.Background(), "Who is registered?")
	require.NoError(t, err)
	assert.Empty(t, answer.Context)
	assert.Equal(t, "Context:\n\n\nQuestion: Who is registered?\nAnswer:", generator.prompts[0])
}

func TestService_Errors(t *testing.T) {
	repo := newRepoWith(t, "Alice")

	svc := NewService(repo, &wordEmbedder{}, &recordingGenerator{}, Options{ChunkSize: 500}, nil)
	_, err := svc.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	failingEmbedder := NewService(repo, &wordEmbedder{err: errors.New("embedding backend down")}, &recordingGenerator{}, Options{ChunkSize: 500}, nil)
	_, err = failingEmbedder.Ask(context.Background(), "Who?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding backend down")

	failingGenerator := NewService(repo, &wordEmbedder{}, &recordingGenerator{err: errors.New("all models failed")}, Options{ChunkSize: 500}, nil)
	_, err = failingGenerator.Ask(context.Background(), "Who?")
	assert.EqualError(t, err, "all models failed")
}
