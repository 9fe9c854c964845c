package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmbeddingConfig holds API settings for text embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimension is the expected vector width; 0 disables the check.
	Dimension int
	Timeout   time.Duration
}

// EmbeddingClient calls an OpenAI-compatible /embeddings endpoint.
type EmbeddingClient struct {
	cfg        EmbeddingConfig
	httpClient *http.Client
}

func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &EmbeddingClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed returns one vector per input text, in input order. All texts must be
// non-blank; provider batch limits are the caller's concern.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &ProviderError{Op: "embedding", Kind: KindBadRequest, Msg: "blank input text"}
		}
	}

	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"input": texts,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "embedding", Kind: KindTransient, Msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Op: "embedding", Kind: KindTransient, Msg: "read response: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Op:     "embedding",
			Kind:   kindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Msg:    truncateBody(raw),
		}
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Op: "embedding", Kind: KindTransient, Msg: "parse response: " + err.Error()}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &ProviderError{
			Op:   "embedding",
			Kind: KindTransient,
			Msg:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)),
		}
	}

	result := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		vec := parsed.Data[i].Embedding
		if len(vec) == 0 {
			return nil, &ProviderError{Op: "embedding", Kind: KindTransient, Msg: "empty embedding in response"}
		}
		if c.cfg.Dimension > 0 && len(vec) != c.cfg.Dimension {
			return nil, &ProviderError{
				Op:   "embedding",
				Kind: KindTransient,
				Msg:  fmt.Sprintf("embedding dimension %d, expected %d", len(vec), c.cfg.Dimension),
			}
		}
		result[i] = vec
	}
	return result, nil
}

func truncateBody(raw []byte) string {
	const max = 512
	s := string(raw)
	if len(s) > max {
		return s[:max]
	}
	return s
}
