package llm

import (
	"context"
	"encoding/json"
	"strings"

	genai "google.golang.org/genai"

	"dreamcard/internal/util/jsonx"
)

// GeminiClient is a thin wrapper around the official genai client. It only
// focuses on the API call itself; cross-cutting concerns (rate limiting,
// retries, logging, hooks) are applied via Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	// NOTE: apiKey is currently unused here; the genai client reads it from
	// env. Keep the parameter for a consistent factory signature.
	_ = apiKey

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func toContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == "model" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
	}
	return out
}

func systemConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return ""
	}
	return c.Content.Parts[0].Text
}

func (g *GeminiClient) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, toContents(msgs), systemConfig(system))
	if err != nil {
		return "", err
	}
	txt := firstText(resp)
	if txt == "" {
		return "", ErrInvalidJSON
	}
	return txt, nil
}

// GenerateJSON concatenates prompt and input, asks for application/json,
// and returns sanitized JSON as json.RawMessage.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}
	txt := firstText(resp)
	if txt == "" {
		return nil, ErrInvalidJSON
	}
	clean, err := jsonx.Sanitize(txt)
	if err != nil {
		return nil, ErrInvalidJSON
	}
	return clean, nil
}

// GenerateStream emits chunks in generation order and returns the full text.
func (g *GeminiClient) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	var full strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, toContents(msgs), systemConfig(system)) {
		if err != nil {
			return full.String(), err
		}
		if txt := firstText(resp); txt != "" {
			full.WriteString(txt)
			if onChunk != nil {
				onChunk(txt)
			}
		}
	}
	return full.String(), nil
}
