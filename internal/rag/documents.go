package rag

import (
	"fmt"

	"facerag/internal/core/models"
	"facerag/internal/util/timezone"

	"github.com/tmc/langchaingo/textsplitter"
)

// Document ist die Textdarstellung eines Datensatzes
type Document struct {
	RecordID uint
	Text     string
}

// Chunk ist ein Textabschnitt eines Dokuments
type Chunk struct {
	RecordID uint   `json:"record_id"`
	Text     string `json:"text"`
}

// BuildDocuments projiziert die Datensätze in Sätze der Form "Name: ..., RegistrationDate: ..."
func BuildDocuments(records []models.FaceRecord) []Document {
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, Document{
			RecordID: r.ID,
			Text:     fmt.Sprintf("Name: %s, RegistrationDate: %s", r.Name, timezone.RegistrationDate(r.Timestamp)),
		})
	}
	return docs
}

// Splitter teilt Dokumente rekursiv an Absatz-, Zeilen- und Wortgrenzen
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter erstellt einen Splitter mit Chunk-Größe und Überlappung in Zeichen
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize, chunkOverlap = 500, 50
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split zerlegt alle Dokumente in Chunks; die Reihenfolge bleibt erhalten
func (s *Splitter) Split(docs []Document) ([]Chunk, error) {
	var chunks []Chunk
	for _, doc := range docs {
		parts, err := s.splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split document for record %d: %w", doc.RecordID, err)
		}
		for _, p := range parts {
			chunks = append(chunks, Chunk{RecordID: doc.RecordID, Text: p})
		}
	}
	return chunks, nil
}
