package llm

import "context"

// Limiter is a minimal interface over a token/rps limiter.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// PermitBroker reserves N model-call permits up-front, so a multi-stage
// pipeline run either gets all its calls or blocks before starting.
type PermitBroker interface {
	Reserve(ctx context.Context, n int) (Lease, error)
}

// Lease injects reserved credits into a context.
type Lease interface {
	Context(ctx context.Context) context.Context
}

type broker struct{ rl Limiter }

// NewBroker returns a PermitBroker backed by the given limiter.
func NewBroker(rl Limiter) PermitBroker { return &broker{rl: rl} }

// Reserve acquires n permits and returns a lease embedding n credits.
// Unused credits are not returned; slight over-reservation is acceptable.
func (b *broker) Reserve(ctx context.Context, n int) (Lease, error) {
	if n <= 0 || b == nil || b.rl == nil {
		return lease{n: 0}, nil
	}
	for i := 0; i < n; i++ {
		if err := b.rl.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return lease{n: n}, nil
}

type lease struct{ n int }

func (l lease) Context(ctx context.Context) context.Context { return WithCredits(ctx, l.n) }
