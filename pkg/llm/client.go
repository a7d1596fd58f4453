// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"doubtiq-go/internal/config"

	"github.com/gorilla/websocket"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai api key not configured")

// MessageWriter receives streamed chunks. Both *websocket.Conn and
// interceptors that wrap it satisfy it.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client is the AI collaborator used by the chat and doubt services.
type Client interface {
	// Complete sends prompt with the system prompt and returns the reply text.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteVision sends prompt together with an image URL (usually a data URL).
	CompleteVision(ctx context.Context, prompt, imageURL string) (string, error)
	// StreamChat streams the reply to prompt chunk by chunk into writer.
	StreamChat(ctx context.Context, prompt string, writer MessageWriter) error
}

// APIError is a non-200 answer from the completion endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Body)
}

type openAIClient struct {
	cfg    config.AIConfig
	client *http.Client
}

// NewClient creates a client for cfg. Timeouts come from the caller's context.
func NewClient(cfg config.AIConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message is one role-tagged entry of a chat request. Content is either a
// string or a slice of ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *openAIClient) systemMessage() Message {
	return Message{Role: "system", Content: c.cfg.SystemPrompt}
}

func (c *openAIClient) textRequest(prompt string, stream bool) chatRequest {
	req := chatRequest{
		Model:    c.cfg.TextModel,
		Messages: []Message{c.systemMessage(), {Role: "user", Content: prompt}},
		Stream:   stream,
	}
	temperature := c.cfg.Temperature
	req.Temperature = &temperature
	if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// Complete calls the text model and returns the first choice.
func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, c.textRequest(prompt, false))
}

// CompleteVision calls the vision model with a text part and an image part.
func (c *openAIClient) CompleteVision(ctx context.Context, prompt, imageURL string) (string, error) {
	req := chatRequest{
		Model: c.cfg.VisionModel,
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
			},
		}},
	}
	if c.cfg.VisionMaxTokens > 0 {
		maxTokens := c.cfg.VisionMaxTokens
		req.MaxTokens = &maxTokens
	}
	return c.complete(ctx, req)
}

func (c *openAIClient) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	resp, err := c.do(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat api returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// StreamChat calls the text model with stream=true and forwards each SSE delta.
func (c *openAIClient) StreamChat(ctx context.Context, prompt string, writer MessageWriter) error {
	resp, err := c.do(ctx, c.textRequest(prompt, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(chunk.Choices[0].Delta.Content)); err != nil {
			return fmt.Errorf("failed to write stream chunk: %w", err)
		}
	}
	return nil
}

func (c *openAIClient) do(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
