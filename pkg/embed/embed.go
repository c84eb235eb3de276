// Package embed provides embedding generation clients for the memory core's
// dense index and semantic chunker.
//
// Two HTTP-backed providers are supported (Ollama, local; OpenAI-compatible,
// cloud), plus a deterministic in-process embedder for tests and
// no-model environments. All implementations return L2-normalized vectors
// so dot product equals cosine similarity.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orneryd/memorycore/pkg/math/vector"
)

// Embedder generates vector embeddings from text. Implementations must be
// safe for concurrent use from multiple goroutines.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query string. It may apply a
	// query-side instruction prefix distinct from Embed's document-side
	// encoding, but always produces a vector in the same space.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimension.
	Dimensions() int

	// Model returns the model name.
	Model() string
}

// Config holds embedding provider configuration.
type Config struct {
	Provider   string        // ollama, openai
	APIURL     string        // e.g. http://localhost:11434
	APIPath    string        // e.g. /api/embeddings or /v1/embeddings
	APIKey     string        // for OpenAI
	Model      string        // e.g. mxbai-embed-large
	Dimensions int           // expected dimensions, for validation
	Timeout    time.Duration // request timeout

	// QueryPrefix is prepended to the text passed to EmbedQuery, following
	// the instruction-prefix convention some embedding models use to
	// distinguish query-side from document-side encoding. Empty by default,
	// meaning EmbedQuery behaves identically to Embed.
	QueryPrefix string
}

// DefaultOllamaConfig returns configuration for local Ollama with
// mxbai-embed-large (1024 dimensions).
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider:   "ollama",
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "mxbai-embed-large",
		Dimensions: 1024,
		Timeout:    30 * time.Second,
	}
}

// DefaultOpenAIConfig returns configuration for OpenAI's
// text-embedding-3-small (1536 dimensions).
func DefaultOpenAIConfig(apiKey string) *Config {
	return &Config{
		Provider:   "openai",
		APIURL:     "https://api.openai.com",
		APIPath:    "/v1/embeddings",
		APIKey:     apiKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// OllamaEmbedder implements Embedder for local Ollama models.
type OllamaEmbedder struct {
	config *Config
	client *http.Client
}

// NewOllama creates an Ollama embedder. If config is nil, DefaultOllamaConfig
// is used.
func NewOllama(config *Config) *OllamaEmbedder {
	if config == nil {
		config = DefaultOllamaConfig()
	}

	return &OllamaEmbedder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a vector embedding for a single text string.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaRequest{
		Model:  e.config.Model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return vector.Normalize(ollamaResp.Embedding), nil
}

// EmbedQuery embeds text with the configured query-side prefix applied.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, e.config.QueryPrefix+text)
}

// EmbedBatch generates embeddings for multiple texts. Ollama has no native
// batch endpoint, so this issues one request per text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = embedding
	}
	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OllamaEmbedder) Dimensions() int { return e.config.Dimensions }

// Model returns the model name.
func (e *OllamaEmbedder) Model() string { return e.config.Model }

// OpenAIEmbedder implements Embedder for OpenAI-compatible embedding APIs.
type OpenAIEmbedder struct {
	config *Config
	client *http.Client
}

// NewOpenAI creates an OpenAI embedder. If config is nil,
// DefaultOpenAIConfig("") is used (fails without an API key).
func NewOpenAI(config *Config) *OpenAIEmbedder {
	if config == nil {
		config = DefaultOpenAIConfig("")
	}

	return &OpenAIEmbedder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type openaiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates a vector embedding for a single text string.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedQuery embeds text with the configured query-side prefix applied.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, e.config.QueryPrefix+text)
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
// Maximum batch size is provider-dependent (2048 texts for OpenAI).
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openaiRequest{
		Model: e.config.Model,
		Input: texts,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var openaiResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([][]float32, len(openaiResp.Data))
	for _, data := range openaiResp.Data {
		results[data.Index] = vector.Normalize(data.Embedding)
	}

	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OpenAIEmbedder) Dimensions() int { return e.config.Dimensions }

// Model returns the model name.
func (e *OpenAIEmbedder) Model() string { return e.config.Model }

// NewEmbedder creates an embedder for the provider named in config.Provider.
func NewEmbedder(config *Config) (Embedder, error) {
	switch config.Provider {
	case "ollama":
		return NewOllama(config), nil
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI requires an API key")
		}
		return NewOpenAI(config), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}
