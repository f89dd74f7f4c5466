// Package llm bindet gehostete und lokale Sprachmodelle sowie Embedding-Dienste an.
package llm

import (
	"context"
	"fmt"
	"strings"

	"facerag/config"
	"facerag/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Embedder erzeugt Vektoren für Texte
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewGenerator baut den Generator aus der Konfiguration: entferntes Modell plus optionaler Ollama-Fallback
func NewGenerator(ctx context.Context, cfg config.LLMConfig, m *metrics.Metrics) (*FallbackGenerator, error) {
	var remote Generator

	switch strings.ToLower(cfg.Provider) {
	case "", "none":
	case "openai":
		remote = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, "", cfg.MaxNewTokens, nil)
	case "gemini":
		gemini, err := NewGeminiProvider(ctx, cfg.APIKey, "", cfg.Model, cfg.MaxNewTokens)
		if err != nil {
			return nil, err
		}
		remote = gemini
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	var local Generator
	if cfg.Local.Enabled {
		local = NewOllamaProvider(cfg.Local.URL, cfg.Local.Model, "", cfg.MaxNewTokens)
	}

	if remote == nil && local == nil {
		return nil, fmt.Errorf("neither remote nor local language model configured")
	}

	log.Infof("Language model: provider=%s model=%s local_fallback=%t", cfg.Provider, cfg.Model, cfg.Local.Enabled)
	return NewFallbackGenerator(remote, local, m), nil
}

// NewEmbedder baut den Embedding-Dienst aus der Konfiguration
func NewEmbedder(cfg config.RAGConfig, llmCfg config.LLMConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Embedder) {
	case "", "ollama":
		return NewOllamaProvider(llmCfg.Local.URL, llmCfg.Local.Model, cfg.EmbedModel, llmCfg.MaxNewTokens), nil
	case "openai":
		return NewOpenAIProvider(llmCfg.APIKey, llmCfg.BaseURL, llmCfg.Model, cfg.EmbedModel, llmCfg.MaxNewTokens, nil), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}
