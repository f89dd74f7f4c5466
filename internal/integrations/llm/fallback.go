package llm

import (
	"context"
	"errors"
	"fmt"

	"facerag/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Generator erzeugt eine Antwort auf einen Prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackGenerator fragt zuerst das entfernte Modell und bei jedem Fehler einmalig das lokale
type FallbackGenerator struct {
	Remote  Generator
	Local   Generator
	metrics *metrics.Metrics
}

// NewFallbackGenerator erstellt einen Generator mit lokalem Fallback. local darf nil sein.
func NewFallbackGenerator(remote, local Generator, m *metrics.Metrics) *FallbackGenerator {
	return &FallbackGenerator{Remote: remote, Local: local, metrics: m}
}

// Generate implementiert rag.Generator
func (g *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	fallback := false
	if g.Remote != nil {
		answer, err := g.Remote.Generate(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		if g.Local == nil {
			return "", err
		}
		log.Warnf("Remote model failed, using local model: %v", err)
		fallback = true
	}

	if g.Local == nil {
		return "", errors.New("no language model configured")
	}

	answer, err := g.Local.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("local model failed: %w", err)
	}
	if fallback {
		g.metrics.IncrementFallback()
	}
	return answer, nil
}
