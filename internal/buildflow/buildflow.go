// Package buildflow orchestrates the pipeline around the persistent Build
// record: create, run (Architect then Engineer), and iterate (Iterator then
// Engineer then Watcher) with the per-build cost cap enforced up front.
package buildflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dreamcard/internal/agents"
	"dreamcard/internal/llm"
	"dreamcard/internal/store"
	t "dreamcard/internal/types"
)

// ErrLimitReached is the distinct cost-cap signal. It is never conflated
// with a generic pipeline failure: the caller reports the limit and the
// model is not invoked.
var ErrLimitReached = errors.New("buildflow: build edit limit reached")

const (
	// CostPerCallCents is the flat accounting rate per model call.
	CostPerCallCents = 2
	// AnonymousCapCents limits builds with no signed-in user.
	AnonymousCapCents = 50
	// SignedInCapCents limits builds owned by a signed-in user.
	SignedInCapCents = 150

	// model calls per operation, used for cost accounting and permit
	// reservation
	runBuildCalls = 2 // architect + engineer
	iterateCalls  = 2 // engineer + possible realign
)

type Runner struct {
	Store     *store.Store
	Architect *agents.Architect
	Engineer  *agents.Engineer
	Iterator  *agents.Iterator
	Watcher   *agents.Watcher
	// Broker optionally reserves model-call permits for a whole run before
	// the first stage starts.
	Broker llm.PermitBroker
	Log    *log.Logger
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// CapCents returns the cost ceiling for a build's owner class.
func CapCents(userID t.UserID) int {
	if userID == "" {
		return AnonymousCapCents
	}
	return SignedInCapCents
}

func newBuildID() t.BuildID {
	return fmt.Sprintf("bld_%d", time.Now().UnixNano())
}

// CreateBuild persists a pending build for the session.
func (r *Runner) CreateBuild(ctx context.Context, sessionID t.SessionID, userID t.UserID, summary t.CreativeSummary) (t.Build, error) {
	b := t.Build{
		ID:              newBuildID(),
		SessionID:       sessionID,
		UserID:          userID,
		Status:          t.BuildPending,
		CreativeSummary: summary,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.Store.PutBuild(ctx, b); err != nil {
		return t.Build{}, err
	}
	return b, nil
}

// RunBuild drives a pending build through Architect and Engineer. Any stage
// error marks the build failed with the message; success installs the first
// artifact and marks it ready.
func (r *Runner) RunBuild(ctx context.Context, buildID t.BuildID) (t.Build, error) {
	b, err := r.Store.GetBuild(ctx, buildID)
	if err != nil {
		return t.Build{}, err
	}

	ctx, err = r.reserve(ctx, runBuildCalls)
	if err != nil {
		return t.Build{}, err
	}

	bp, err := r.Architect.FromSummary(ctx, b.CreativeSummary)
	if err != nil {
		return r.markFailed(ctx, buildID, err)
	}

	art, err := r.Engineer.Generate(ctx, bp, "", nil)
	if err != nil {
		return r.markFailed(ctx, buildID, err)
	}

	expect := 0
	if b.Artifact != nil {
		expect = b.Artifact.Version
	}
	if _, err := r.Store.UpdateArtifact(ctx, buildID, art, expect); err != nil {
		return r.markFailed(ctx, buildID, err)
	}

	out, err := r.Store.UpdateBuild(ctx, buildID, func(b *t.Build) {
		b.Status = t.BuildReady
		b.Error = ""
		b.TokenCostCents += runBuildCalls * CostPerCallCents
	})
	if err != nil {
		return t.Build{}, err
	}
	r.logf("build %s ready (cost %d cents)", buildID, out.TokenCostCents)
	return out, nil
}

// Iterate applies one edit request to a ready build. The cost cap is checked
// before any model call; the artifact is superseded under optimistic
// versioning and the build stays ready even when the edit itself fails.
func (r *Runner) Iterate(ctx context.Context, buildID t.BuildID, request string) (t.Build, error) {
	b, err := r.Store.GetBuild(ctx, buildID)
	if err != nil {
		return t.Build{}, err
	}
	if b.Status != t.BuildReady || b.Artifact == nil {
		return t.Build{}, fmt.Errorf("buildflow: build %s is not ready for edits", buildID)
	}
	if b.TokenCostCents+iterateCalls*CostPerCallCents > CapCents(b.UserID) {
		return t.Build{}, ErrLimitReached
	}

	ctx, err = r.reserve(ctx, iterateCalls)
	if err != nil {
		return t.Build{}, err
	}

	newArt, err := r.Iterator.Apply(ctx, request, *b.Artifact)
	if err != nil {
		return t.Build{}, err
	}

	if _, err := r.Store.UpdateArtifact(ctx, buildID, newArt, b.Artifact.Version); err != nil {
		return t.Build{}, err
	}
	out, err := r.Store.UpdateBuild(ctx, buildID, func(b *t.Build) {
		b.TokenCostCents += iterateCalls * CostPerCallCents
	})
	if err != nil {
		return t.Build{}, err
	}
	r.logf("build %s iterated (cost %d cents)", buildID, out.TokenCostCents)
	return out, nil
}

func (r *Runner) reserve(ctx context.Context, n int) (context.Context, error) {
	if r.Broker == nil {
		return ctx, nil
	}
	lease, err := r.Broker.Reserve(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("buildflow: reserve permits: %w", err)
	}
	return lease.Context(ctx), nil
}

func (r *Runner) markFailed(ctx context.Context, buildID t.BuildID, cause error) (t.Build, error) {
	r.logf("build %s failed: %v", buildID, cause)
	out, err := r.Store.UpdateBuild(ctx, buildID, func(b *t.Build) {
		b.Status = t.BuildFailed
		b.Error = cause.Error()
	})
	if err != nil {
		return t.Build{}, errors.Join(cause, err)
	}
	return out, cause
}
