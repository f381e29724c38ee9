// Package titles provides title generator adapters.
package titles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

const systemPrompt = "Generate a short, warm, reflective title (maximum 6 words) " +
	"for this journal entry. Return only the title, no quotes or punctuation around it."

// PromptLimit bounds how much of a summary is sent to the model.
const PromptLimit = 2000

// HTTPConfig holds configuration for the chat-completions title generator.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPGenerator implements ports.TitleGenerator against an OpenAI-compatible
// chat completions endpoint.
type HTTPGenerator struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPGenerator creates a new chat-completions title generator.
func NewHTTPGenerator(config HTTPConfig) *HTTPGenerator {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPGenerator{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate produces a title for a journal summary. The summary is redacted
// and truncated before it leaves the service.
func (g *HTTPGenerator) Generate(ctx context.Context, summary string) (journal.Generated, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: journal.PromptText(summary, PromptLimit)},
		},
	})
	if err != nil {
		return journal.Generated{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return journal.Generated{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return journal.Generated{}, fmt.Errorf("call title model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return journal.Generated{}, fmt.Errorf("title model returned %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return journal.Generated{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return journal.Generated{}, errors.New("title model returned no choices")
	}

	title := journal.CleanTitle(out.Choices[0].Message.Content)
	if title == "" {
		return journal.Generated{}, errors.New("title model returned an empty title")
	}
	return journal.Generated{Title: title, Model: g.config.Model}, nil
}

// Ensure interface compliance.
var _ ports.TitleGenerator = (*HTTPGenerator)(nil)
