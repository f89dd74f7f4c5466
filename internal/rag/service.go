// Package rag beantwortet Fragen zu den gespeicherten Datensätzen mit Retrieval-Augmented Generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"facerag/internal/db/repository"
	"facerag/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// ErrEmptyQuestion wird bei leerer Frage zurückgegeben
var ErrEmptyQuestion = errors.New("no question provided")

// Embedder erzeugt Vektoren für Texte
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator erzeugt eine Antwort auf einen Prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options steuert Chunking und Retrieval
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	EmbedBatch   int
}

// Answer enthält die Antwort und den verwendeten Kontext
type Answer struct {
	Text    string
	Prompt  string
	Context []Chunk
}

// Service baut den Index pro Frage aus dem aktuellen Datenbestand neu auf
type Service struct {
	repo      repository.Repository
	embedder  Embedder
	generator Generator
	splitter  *Splitter
	opts      Options
	metrics   *metrics.Metrics
}

// NewService erstellt einen neuen Antwortdienst
func NewService(repo repository.Repository, embedder Embedder, generator Generator, opts Options, m *metrics.Metrics) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.EmbedBatch <= 0 {
		opts.EmbedBatch = 64
	}
	return &Service{
		repo:      repo,
		embedder:  embedder,
		generator: generator,
		splitter:  NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		opts:      opts,
		metrics:   m,
	}
}

// Retrieve lädt alle Datensätze, indiziert sie und gibt die TopK ähnlichsten Chunks zurück
func (s *Service) Retrieve(ctx context.Context, question string) ([]Chunk, error) {
	records, err := s.repo.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	chunks, err := s.splitter.Split(BuildDocuments(records))
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Debug("No records to index, answering without context")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedBatched(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	index, err := BuildIndex(chunks, embeddings)
	if err != nil {
		return nil, err
	}

	query, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(query) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the question", len(query))
	}

	hits, err := index.Search(query[0], s.opts.TopK)
	if err != nil {
		return nil, err
	}

	result := make([]Chunk, len(hits))
	for i, h := range hits {
		result[i] = h.Chunk
	}
	return result, nil
}

// Ask beantwortet eine Frage mit dem Kontext der ähnlichsten Chunks
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAnswer(time.Since(start)) }()

	if strings.TrimSpace(question) == "" {
		s.metrics.RecordQuery(metrics.OutcomeInvalidInput)
		return nil, ErrEmptyQuestion
	}

	chunks, err := s.Retrieve(ctx, question)
	if err != nil {
		s.metrics.RecordQuery(metrics.OutcomeError)
		return nil, err
	}

	prompt := BuildPrompt(chunks, question)
	log.Debugf("Prompt sent to model:\n%s", prompt)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordQuery(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordQuery(metrics.OutcomeSuccess)
	return &Answer{Text: text, Prompt: prompt, Context: chunks}, nil
}

// BuildPrompt setzt Kontext und Frage zum Prompt zusammen
func BuildPrompt(chunks []Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\nAnswer:", strings.Join(parts, "\n"), question)
}

func (s *Service) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.opts.EmbedBatch {
		end := start + s.opts.EmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
