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

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionConfig holds API settings for chat completion (OpenAI-compatible).
type CompletionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// CompletionClient calls an OpenAI-compatible /chat/completions endpoint.
type CompletionClient struct {
	cfg        CompletionConfig
	httpClient *http.Client
}

func NewCompletionClient(cfg CompletionConfig) *CompletionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &CompletionClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CompletionClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build completion request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Op: "completion", Kind: KindTransient, Msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Op: "completion", Kind: KindTransient, Msg: "read response: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return "", &ProviderError{
			Op:     "completion",
			Kind:   kindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Msg:    truncateBody(raw),
		}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Op: "completion", Kind: KindTransient, Msg: "parse response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Op: "completion", Kind: KindTransient, Msg: "empty choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}
