package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssistantConfig holds configuration for a hosted assistant endpoint.
type AssistantConfig struct {
	URL         string // full URL of the assistant chat endpoint
	APIKey      string
	AssistantID string
	Timeout     time.Duration // default: 60s
}

// AssistantClient implements Assistant by POSTing the prompt to a hosted
// assistant that has its own tool access.
type AssistantClient struct {
	cfg            AssistantConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewAssistantClient creates a new hosted assistant client.
func NewAssistantClient(cfg AssistantConfig) *AssistantClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &AssistantClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker("assistant"),
	}
}

type assistantRequest struct {
	AssistantID string             `json:"assistant_id,omitempty"`
	Messages    []assistantMessage `json:"messages"`
}

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantResponse struct {
	Output []AssistantOutput `json:"output"`
}

// Ask sends prompt as a single user message and returns the assistant's
// output list. Any non-2xx status is an error.
func (c *AssistantClient) Ask(ctx context.Context, prompt string) ([]AssistantOutput, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.ask(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("assistant circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.([]AssistantOutput), nil
}

func (c *AssistantClient) ask(ctx context.Context, prompt string) ([]AssistantOutput, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("assistant URL is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(assistantRequest{
		AssistantID: c.cfg.AssistantID,
		Messages:    []assistantMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData assistantResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return respData.Output, nil
}

// Compile-time assertion.
var _ Assistant = (*AssistantClient)(nil)
