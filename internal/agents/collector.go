package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dreamcard/internal/llm"
	t "dreamcard/internal/types"
)

// TriggerWord short-circuits the collector and editor chats before any model
// call. Callers decide what the signal means.
const TriggerWord = "pop"

const collectorSystem = `You are a creative assistant helping someone design a personalized card experience for a recipient. Keep the conversation short and natural: 1-2 substantive exchanges. Ask who the card is for, what vibe or tone they want, and what the center of the experience is (e.g. an avatar, a card, an orb). Confirm briefly that they're creating something the recipient will control. Do not list data points; weave questions into a friendly chat.`

var collectorDataPoints = []string{
	"recipient name",
	"sender name",
	"sender vibe or tone",
	"central subject (avatar, card, orb, etc.)",
	"product confirmation (receiver controls experience)",
}

const completionCheckPrompt = `Based on the conversation, do we have enough to create a first draft of the card?

We need: %s.

Respond with JSON only:
{
  "hasEnoughInfo": true or false,
  "missingPoints": ["list any missing data points"]
}`

const translatePrompt = `You are a data extraction assistant. Turn this chat transcript into a structured creative summary for a card builder.

Output ONLY valid JSON with exactly these keys (no extra keys):
{
  "recipientName": "string",
  "senderName": "string",
  "senderVibe": "string",
  "centralSubject": "string (e.g. avatar, card, orb)",
  "centralSubjectStyle": "string or omit",
  "tone": "string",
  "productConfirmed": true,
  "notes": "string or omit"
}`

const proseSummaryPrompt = `Write a short, warm approval paragraph (2-3 sentences) summarizing the card the sender just described: who it is for, the vibe, and the central subject. Address the sender directly and end by asking them to confirm. No JSON, no lists.`

// Collector runs the sender-facing intake chat. It produces the next
// assistant turn, decides when enough facts exist to proceed, and on success
// distills the transcript into a CreativeSummary.
type Collector struct {
	LLM llm.LLMClient
}

// CollectorResult is one collector turn. When ShowConfirmation is true,
// Summary is always non-nil and Summary.Prose carries the approval paragraph.
type CollectorResult struct {
	Message          t.ChatMessage
	ShowConfirmation bool
	Summary          *t.CreativeSummary
	// Pop is set when the reserved trigger word short-circuited the turn.
	Pop bool
}

func historyToMessages(history []t.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := "model"
		if m.Sender == "user" {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Text: m.Text})
	}
	return out
}

func transcript(history []t.ChatMessage) string {
	var sb strings.Builder
	for i, m := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		who := "Assistant"
		if m.Sender == "user" {
			who = "User"
		}
		sb.WriteString(who)
		sb.WriteString(": ")
		sb.WriteString(m.Text)
	}
	return sb.String()
}

func aiMessage(text, msgType string) t.ChatMessage {
	return t.ChatMessage{
		ID:        fmt.Sprintf("ai-%d", time.Now().UnixNano()),
		Text:      text,
		Sender:    "ai",
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// IsTrigger reports whether text is the reserved trigger word.
func IsTrigger(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), TriggerWord)
}

// Reply produces the next assistant turn and runs the completion check.
func (c *Collector) Reply(ctx context.Context, history []t.ChatMessage, userText string) (CollectorResult, error) {
	return c.reply(ctx, history, userText, nil)
}

// ReplyStream is Reply with incremental delivery of the assistant turn.
// Chunks arrive in generation order; the completion check and summary run
// only after the full reply text is assembled.
func (c *Collector) ReplyStream(ctx context.Context, history []t.ChatMessage, userText string, onChunk func(string)) (CollectorResult, error) {
	return c.reply(ctx, history, userText, onChunk)
}

func (c *Collector) reply(ctx context.Context, history []t.ChatMessage, userText string, onChunk func(string)) (CollectorResult, error) {
	if IsTrigger(userText) {
		return CollectorResult{Message: aiMessage("", ""), Pop: true}, nil
	}

	ctx = llm.WithPhase(ctx, "collector")
	msgs := append(historyToMessages(history), llm.Message{Role: "user", Text: userText})

	var replyText string
	var err error
	if onChunk != nil {
		replyText, err = c.LLM.GenerateStream(ctx, collectorSystem, msgs, onChunk)
	} else {
		replyText, err = c.LLM.GenerateText(ctx, collectorSystem, msgs)
	}
	if err != nil {
		return CollectorResult{}, fmt.Errorf("collector reply: %w", err)
	}

	full := append(append([]t.ChatMessage{}, history...),
		t.ChatMessage{Text: userText, Sender: "user"},
		t.ChatMessage{Text: replyText, Sender: "ai"},
	)

	enough := c.checkCompletion(ctx, full)
	if !enough {
		return CollectorResult{Message: aiMessage(replyText, "")}, nil
	}

	summary := c.Summarize(ctx, full)
	return CollectorResult{
		Message:          aiMessage(replyText, t.MessageTypeConfirmation),
		ShowConfirmation: true,
		Summary:          summary,
	}, nil
}

// checkCompletion asks a JSON-constrained classification call whether enough
// facts exist. Any transport or parse failure counts as not-enough; the
// pipeline never advances on ambiguous model output.
func (c *Collector) checkCompletion(ctx context.Context, history []t.ChatMessage) bool {
	ctx = llm.WithPhase(ctx, "collector-check")
	prompt := fmt.Sprintf(completionCheckPrompt, strings.Join(collectorDataPoints, ", ")) +
		"\n\nConversation:\n" + transcript(history)

	raw, err := c.LLM.GenerateJSON(ctx, prompt, nil)
	if err != nil {
		return false
	}
	var check struct {
		HasEnoughInfo bool     `json:"hasEnoughInfo"`
		MissingPoints []string `json:"missingPoints"`
	}
	if err := json.Unmarshal(raw, &check); err != nil {
		return false
	}
	return check.HasEnoughInfo
}

// Summarize distills the transcript into a CreativeSummary with the prose
// approval paragraph attached. Extraction failure falls back to a summary
// built from the sender's own words; it never fails the request.
func (c *Collector) Summarize(ctx context.Context, history []t.ChatMessage) *t.CreativeSummary {
	tx := transcript(history)

	summary, err := c.extractSummary(ctx, tx)
	if err != nil {
		summary = fallbackSummary(history)
	}

	proseCtx := llm.WithPhase(ctx, "collector-prose")
	prose, err := c.LLM.GenerateText(proseCtx, proseSummaryPrompt, []llm.Message{{Role: "user", Text: tx}})
	if err == nil {
		summary.Prose = strings.TrimSpace(prose)
	}
	return summary
}

func (c *Collector) extractSummary(ctx context.Context, tx string) (*t.CreativeSummary, error) {
	ctx = llm.WithPhase(ctx, "collector-extract")
	raw, err := c.LLM.GenerateJSON(ctx, translatePrompt, map[string]string{"transcript": tx})
	if err != nil {
		return nil, err
	}
	var out t.CreativeSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("summary extraction: %w", err)
	}
	if out.RecipientName == "" {
		out.RecipientName = "your loved one"
	}
	if out.SenderName == "" {
		out.SenderName = "you"
	}
	if out.SenderVibe == "" {
		out.SenderVibe = "personal and warm"
	}
	if out.CentralSubject == "" {
		out.CentralSubject = "avatar"
	}
	if out.Tone == "" {
		out.Tone = "warm"
	}
	out.ProductConfirmed = true
	return &out, nil
}

// fallbackSummary concatenates the sender's own words so a failed extraction
// still yields something the Architect can work with.
func fallbackSummary(history []t.ChatMessage) *t.CreativeSummary {
	var words []string
	for _, m := range history {
		if m.Sender == "user" && strings.TrimSpace(m.Text) != "" {
			words = append(words, strings.TrimSpace(m.Text))
		}
	}
	vibe := strings.Join(words, " ")
	if len(vibe) > 200 {
		vibe = vibe[:200]
	}
	if vibe == "" {
		vibe = "personal and warm"
	}
	return &t.CreativeSummary{
		RecipientName:    "your loved one",
		SenderName:       "you",
		SenderVibe:       vibe,
		CentralSubject:   "avatar",
		Tone:             "warm",
		ProductConfirmed: true,
		Notes:            "summary assembled from the sender's own words",
	}
}
