// Package inference talks to an external chat-completion API to generate
// replies for chat sessions.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/showcaselabs/showcase-go/internal/config"
	"github.com/showcaselabs/showcase-go/internal/httpclient"
)

// ErrUnavailable indicates the collaborator failed or returned an unusable
// response. Callers are expected to substitute a fallback reply.
var ErrUnavailable = errors.New("inference collaborator unavailable")

// Completer generates a reply to a user message.
type Completer interface {
	Complete(ctx context.Context, userMessage string) (string, error)
}

// Client is a chat-completion API client.
type Client struct {
	cfg  *config.InferenceConfig
	http *httpclient.Client
}

// NewClient creates an inference client backed by the given HTTP client.
func NewClient(cfg *config.InferenceConfig, hc *httpclient.Client) *Client {
	return &Client{cfg: cfg, http: hc}
}

var _ Completer = (*Client)(nil)

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the user message to the chat-completion endpoint and
// returns the generated reply. Failures of any kind (transport, non-2xx,
// malformed or empty response) surface as ErrUnavailable.
func (c *Client) Complete(ctx context.Context, userMessage string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userMessage},
		},
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/chat/completions"

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	body, resp, err := c.http.PostJSON(ctx, endpoint, reqBody, headers)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrUnavailable)
	}

	return reply, nil
}
