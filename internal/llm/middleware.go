package llm

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks).
type Middleware func(LLMClient) LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner LLMClient, mws ...Middleware) LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate limiting --------

// RateLimit limits request rate across all generate methods. If rps <= 0
// the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next LLMClient) LLMClient {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

// RateLimitFromEnv reads RPS/BURST from env vars with the given prefixes in
// priority order, e.g. ("LLM","GEMINI") checks LLM_RPS then GEMINI_RPS.
func RateLimitFromEnv(prefixes ...string) Middleware {
	find := func(suffix string) string {
		for _, p := range prefixes {
			if p == "" {
				continue
			}
			if v := os.Getenv(p + suffix); v != "" {
				return v
			}
		}
		return ""
	}
	rps, _ := strconv.ParseFloat(find("_RPS"), 64)
	burst, _ := strconv.Atoi(find("_BURST"))
	return RateLimit(rps, burst)
}

type rateLimited struct {
	next LLMClient
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) acquire(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	// Prefer reserved credits embedded in the context.
	if TakeCredit(ctx) {
		return nil
	}
	return c.rl.Acquire(ctx)
}

func (c *rateLimited) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateText(ctx, system, msgs)
}

func (c *rateLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

func (c *rateLimited) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateStream(ctx, system, msgs, onChunk)
}

// -------- RPM/RPD/TPM combined limiter --------

// MultiLimit applies minute/day request limits and tokens-per-minute.
// Pass 0 to disable a specific limiter. Burst is derived as the nominal rate.
func MultiLimit(rpm, rpd, tpm int) Middleware {
	// Constant token-per-request estimate avoids per-call marshaling.
	const defaultTokensPerRequest = 1000
	return MultiLimitConstTokens(rpm, rpd, tpm, defaultTokensPerRequest)
}

// MultiLimitConstTokens is like MultiLimit but with an explicit
// tokens-per-request estimate for the TPM limiter.
func MultiLimitConstTokens(rpm, rpd, tpm, tokensPerRequest int) Middleware {
	var rpmL, rpdL, tpmL *rpsLimiter
	if rpm > 0 {
		rpmL = newRPSLimiter(float64(rpm)/60.0, rpm)
	}
	if rpd > 0 {
		rpdL = newRPSLimiter(float64(rpd)/86400.0, rpd)
	}
	if tpm > 0 {
		tpmL = newRPSLimiter(float64(tpm)/60.0, tpm)
	}
	if tokensPerRequest < 1 {
		tokensPerRequest = 1
	}
	return func(next LLMClient) LLMClient {
		return &multiLimited{next: next, rpm: rpmL, rpd: rpdL, tpm: tpmL, tpr: tokensPerRequest}
	}
}

// MultiLimitFromEnv reads _RPM, _RPD and _TPM ints using the prefixes in
// priority order.
func MultiLimitFromEnv(prefixes ...string) Middleware {
	find := func(suffix string) int {
		for _, p := range prefixes {
			if p == "" {
				continue
			}
			if v := os.Getenv(p + suffix); v != "" {
				n, _ := strconv.Atoi(v)
				return n
			}
		}
		return 0
	}
	return MultiLimit(find("_RPM"), find("_RPD"), find("_TPM"))
}

type multiLimited struct {
	next LLMClient
	rpm  *rpsLimiter
	rpd  *rpsLimiter
	tpm  *rpsLimiter
	tpr  int
}

func (m *multiLimited) Name() string { return m.next.Name() }
func (m *multiLimited) Close() error {
	m.rpm.Stop()
	m.rpd.Stop()
	m.tpm.Stop()
	return m.next.Close()
}

func (m *multiLimited) acquire(ctx context.Context) error {
	// Reserved credits cover the per-request limiters, not TPM.
	if !TakeCredit(ctx) {
		if err := m.rpm.Acquire(ctx); err != nil {
			return err
		}
		if err := m.rpd.Acquire(ctx); err != nil {
			return err
		}
	}
	return m.tpm.AcquireN(ctx, m.tpr)
}

func (m *multiLimited) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	return m.next.GenerateText(ctx, system, msgs)
}

func (m *multiLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	return m.next.GenerateJSON(ctx, prompt, input)
}

func (m *multiLimited) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	return m.next.GenerateStream(ctx, system, msgs, onChunk)
}

// -------- Retry with exponential backoff --------

// Retry retries failed calls up to maxAttempts with exponential backoff.
// Pipeline stages are wrapped without Retry (at-most-once per stage, by
// design); this middleware exists for the offline CLI and ancillary calls.
// Permanent errors and canceled contexts stop retrying immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next LLMClient) LLMClient {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next LLMClient
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) do(ctx context.Context, call func() error) error {
	var last error
	for i := 0; i < r.max; i++ {
		if err := call(); err == nil {
			return nil
		} else {
			last = err
			if IsPermanent(err) {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return last
}

func (r *retrying) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	var out string
	err := r.do(ctx, func() error {
		var e error
		out, e = r.next.GenerateText(ctx, system, msgs)
		return e
	})
	return out, err
}

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.do(ctx, func() error {
		var e error
		out, e = r.next.GenerateJSON(ctx, prompt, input)
		return e
	})
	return out, err
}

func (r *retrying) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	// Streaming is not replayed: chunks already delivered cannot be taken
	// back, so a stream call gets exactly one attempt.
	return r.next.GenerateStream(ctx, system, msgs, onChunk)
}

// -------- Logging & hooks --------

// WithLogging logs request size and errors per phase. Pass nil for
// log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next LLMClient) LLMClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next LLMClient
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	n := len(system)
	for _, m := range msgs {
		n += len(m.Text)
	}
	l.log.Printf("LLM request (%s): %d bytes", PhaseFrom(ctx), n)
	out, err := l.next.GenerateText(ctx, system, msgs)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", PhaseFrom(ctx), err)
	}
	return out, err
}

func (l *logging) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	l.log.Printf("LLM request (%s): %d bytes", PhaseFrom(ctx), len(prompt)+len(in))
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", PhaseFrom(ctx), err)
	}
	return raw, err
}

func (l *logging) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	n := len(system)
	for _, m := range msgs {
		n += len(m.Text)
	}
	l.log.Printf("LLM stream request (%s): %d bytes", PhaseFrom(ctx), n)
	out, err := l.next.GenerateStream(ctx, system, msgs, onChunk)
	if err != nil {
		l.log.Printf("LLM stream error (%s): %v", PhaseFrom(ctx), err)
	}
	return out, err
}

// WithHooks calls HookFrom(ctx).Before/After around every generate call.
// No hook in the context means no-op.
func WithHooks() Middleware {
	return func(next LLMClient) LLMClient {
		return &hooked{next: next}
	}
}

type hooked struct{ next LLMClient }

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), system, msgs)
	}
	out, err := h.next.GenerateText(ctx, system, msgs)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, PhaseFrom(ctx), []byte(out), err)
	}
	return out, err
}

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), prompt, input)
	}
	raw, err := h.next.GenerateJSON(ctx, prompt, input)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return raw, err
}

func (h *hooked) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), system, msgs)
	}
	out, err := h.next.GenerateStream(ctx, system, msgs, onChunk)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, PhaseFrom(ctx), []byte(out), err)
	}
	return out, err
}
