package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"dreamcard/internal/util/jsonx"
)

// OpenAIClient calls an OpenAI-compatible Chat Completions API. The base
// URL is configurable so the same client serves api.openai.com and
// compatible providers.
type OpenAIClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIClient creates a client. If apiKey is empty it falls back to the
// OPENAI_API_KEY env var; if baseURL is empty the OpenAI endpoint is used.
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIClient) messages(system string, msgs []Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, chatMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		role := "user"
		if m.Role == "model" {
			role = "assistant"
		}
		out = append(out, chatMessage{Role: role, Content: m.Text})
	}
	return out
}

func (c *OpenAIClient) post(ctx context.Context, body chatReq) (*http.Response, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		const max = 2048
		if len(payload) > max {
			payload = payload[:max]
		}
		err := fmt.Errorf("openai: unexpected status %s: %s", resp.Status, string(payload))
		if resp.StatusCode == 400 && strings.Contains(string(payload), `"context_length_exceeded"`) {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *OpenAIClient) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	resp, err := c.post(ctx, chatReq{Model: c.model, Messages: c.messages(system, msgs)})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrInvalidJSON
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	resp, err := c.post(ctx, chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "[INPUT JSON]\n" + string(in)},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, ErrInvalidJSON
	}
	clean, err := jsonx.Sanitize(out.Choices[0].Message.Content)
	if err != nil {
		return nil, ErrInvalidJSON
	}
	return clean, nil
}

// GenerateStream consumes the SSE stream ("data: {...}" lines) and forwards
// delta content in arrival order.
func (c *OpenAIClient) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	resp, err := c.post(ctx, chatReq{Model: c.model, Messages: c.messages(system, msgs), Stream: true})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var out chatResp
		if err := json.Unmarshal([]byte(payload), &out); err != nil {
			continue
		}
		if len(out.Choices) == 0 {
			continue
		}
		if delta := out.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), nil
}
