package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient serves canned responses keyed by the phase carried in the
// context. Tests register one payload per phase and inspect recorded calls
// afterwards.
type FakeClient struct {
	mu        sync.Mutex
	responses map[string]string
	fallback  string
	errs      map[string]error
	calls     []FakeCall
}

// FakeCall records one generate invocation.
type FakeCall struct {
	Phase  string
	Method string
	Prompt string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		responses: map[string]string{},
		errs:      map[string]error{},
		fallback:  "{}",
	}
}

// Respond registers the payload returned for calls made under phase.
func (f *FakeClient) Respond(phase, payload string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[phase] = payload
	return f
}

// Fallback sets the payload for phases with no registered response.
func (f *FakeClient) Fallback(payload string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = payload
	return f
}

// Fail makes calls under phase return err.
func (f *FakeClient) Fail(phase string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[phase] = err
	return f
}

// Calls returns a copy of all recorded invocations.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) lookup(ctx context.Context, method, prompt string) (string, error) {
	phase := PhaseFrom(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Phase: phase, Method: method, Prompt: prompt})
	if err, ok := f.errs[phase]; ok {
		return "", err
	}
	if out, ok := f.responses[phase]; ok {
		return out, nil
	}
	return f.fallback, nil
}

func (f *FakeClient) Name() string { return "Fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	return f.lookup(ctx, "text", system)
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	out, err := f.lookup(ctx, "json", prompt)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(out)) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(out), nil
}

func (f *FakeClient) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	out, err := f.lookup(ctx, "stream", system)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		// Split into two chunks so stream consumers see more than one emit.
		mid := len(out) / 2
		if mid > 0 {
			onChunk(out[:mid])
			onChunk(out[mid:])
		} else if out != "" {
			onChunk(out)
		}
	}
	return out, nil
}
