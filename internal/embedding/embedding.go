// Package embedding provides a pluggable interface for text embedding
// providers and the cosine similarity used by vector search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"
)

// ErrUnavailable means no embedding provider is configured or the
// provider cannot be reached. Non-fatal for storage (the record is kept
// without a vector); a vector-search attempt degrades to lexical-only.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HTTPEmbedder calls an HTTP embedding API: either a local Ollama
// instance or any OpenAI-compatible endpoint.
type HTTPEmbedder struct {
	kind    string // "ollama" or "openai"
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
// Default model: nomic-embed-text (768 dims), all-minilm (384 dims).
func NewOllamaEmbedder(model string) *HTTPEmbedder {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	dims := 768
	if model == "all-minilm" {
		dims = 384
	}
	return &HTTPEmbedder{
		kind:    "ollama",
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *HTTPEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &HTTPEmbedder{
		kind:    "openai",
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPEmbedder) Dims() int { return e.dims }

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var url string
	var payload any
	if e.kind == "ollama" {
		url = e.baseURL + "/api/embeddings"
		payload = map[string]string{"model": e.model, "prompt": text}
	} else {
		url = e.baseURL + "/embeddings"
		payload = map[string]string{"model": e.model, "input": text}
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s error %d: %s", e.kind, resp.StatusCode, string(b))
	}

	if e.kind == "ollama" {
		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, err
		}
		return result.Embedding, nil
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

// NewFromEnv creates an embedder from environment variables.
// ENGRAM_EMBED_PROVIDER: "ollama" | "openai" | "" (disabled)
// ENGRAM_EMBED_MODEL: model name
// ENGRAM_EMBED_URL: base URL override (openai provider)
// OPENAI_API_KEY: for openai provider
func NewFromEnv() Embedder {
	provider := os.Getenv("ENGRAM_EMBED_PROVIDER")
	model := os.Getenv("ENGRAM_EMBED_MODEL")

	switch provider {
	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model)
	case "openai":
		url := os.Getenv("ENGRAM_EMBED_URL")
		key := os.Getenv("OPENAI_API_KEY")
		return NewOpenAIEmbedder(url, key, model, 0)
	default:
		return nil // embeddings disabled
	}
}
