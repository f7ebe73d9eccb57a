package buildflow

import (
	"context"
	"path/filepath"
	"testing"

	"dreamcard/internal/agents"
	"dreamcard/internal/llm"
	"dreamcard/internal/store"
	"dreamcard/internal/tester"
	t2 "dreamcard/internal/types"
)

func pipelineFake() *llm.FakeClient {
	return llm.NewFakeClient().
		Respond("architect", `{"heading":"For Danielle","buttons":[{"id":"b1","type":"text","label":"tell a joke"}]}`).
		Respond("engineer", "import React from 'react';\nimport { motion } from 'framer-motion';\nconst App = () => null;\nexport default App;")
}

func newRunner(t *testing.T, cli llm.LLMClient) *Runner {
	t.Helper()
	eng := &agents.Engineer{LLM: cli}
	return &Runner{
		Store:     store.New(filepath.Join(t.TempDir(), "state.json")),
		Architect: &agents.Architect{LLM: cli},
		Engineer:  eng,
		Iterator: &agents.Iterator{
			LLM:      cli,
			Engineer: eng,
			Watcher:  &agents.Watcher{Engineer: eng},
		},
		Watcher: &agents.Watcher{Engineer: eng},
	}
}

func TestRunBuildSuccess(t *testing.T) {
	r := newRunner(t, pipelineFake())
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{RecipientName: "Danielle"})
	tester.NoErr(t, err)
	tester.Eq(t, b.Status, t2.BuildPending)

	out, err := r.RunBuild(ctx, b.ID)
	tester.NoErr(t, err)
	tester.Eq(t, out.Status, t2.BuildReady)
	tester.True(t, out.Artifact != nil)
	tester.Eq(t, out.Artifact.Version, 1)
	tester.True(t, out.Blueprint != nil)
	tester.Eq(t, out.Blueprint.Heading, "For Danielle")
	tester.Eq(t, out.TokenCostCents, runBuildCalls*CostPerCallCents)
}

func TestRunBuildStageFailureMarksFailed(t *testing.T) {
	r := newRunner(t, llm.Disabled{})
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{})
	tester.NoErr(t, err)

	_, err = r.RunBuild(ctx, b.ID)
	tester.ErrIs(t, err, llm.ErrNotConfigured)

	stored, err := r.Store.GetBuild(ctx, b.ID)
	tester.NoErr(t, err)
	tester.Eq(t, stored.Status, t2.BuildFailed)
	tester.Contains(t, stored.Error, "no model backend")
}

func TestIterateSupersedesArtifact(t *testing.T) {
	r := newRunner(t, pipelineFake())
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{})
	tester.NoErr(t, err)
	_, err = r.RunBuild(ctx, b.ID)
	tester.NoErr(t, err)

	out, err := r.Iterate(ctx, b.ID, "change the heading to Surprise")
	tester.NoErr(t, err)
	tester.Eq(t, out.Status, t2.BuildReady)
	tester.Eq(t, out.Artifact.Version, 2)
	tester.Eq(t, out.Artifact.Blueprint.Heading, "change the heading to Surprise")
	tester.Eq(t, out.TokenCostCents, (runBuildCalls+iterateCalls)*CostPerCallCents)
}

func TestIterateRefusesPendingBuild(t *testing.T) {
	r := newRunner(t, pipelineFake())
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{})
	tester.NoErr(t, err)

	_, err = r.Iterate(ctx, b.ID, "anything")
	tester.Err(t, err)
}

func TestIterateCostCapReportsLimit(t *testing.T) {
	fake := pipelineFake()
	r := newRunner(t, fake)
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{})
	tester.NoErr(t, err)
	_, err = r.RunBuild(ctx, b.ID)
	tester.NoErr(t, err)

	// Push the counter to the anonymous ceiling.
	_, err = r.Store.UpdateBuild(ctx, b.ID, func(b *t2.Build) {
		b.TokenCostCents = AnonymousCapCents
	})
	tester.NoErr(t, err)

	before := len(fake.Calls())
	_, err = r.Iterate(ctx, b.ID, "more sparkle")
	tester.ErrIs(t, err, ErrLimitReached)
	// The cap check runs before any model call.
	tester.Eq(t, len(fake.Calls()), before)
}

func TestSignedInCapIsHigher(t *testing.T) {
	tester.Eq(t, CapCents(""), AnonymousCapCents)
	tester.Eq(t, CapCents("user-1"), SignedInCapCents)

	r := newRunner(t, pipelineFake())
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "user-1", t2.CreativeSummary{})
	tester.NoErr(t, err)
	_, err = r.RunBuild(ctx, b.ID)
	tester.NoErr(t, err)

	// Anonymous cap exceeded but signed-in cap not: edit allowed.
	_, err = r.Store.UpdateBuild(ctx, b.ID, func(b *t2.Build) {
		b.TokenCostCents = AnonymousCapCents + 10
	})
	tester.NoErr(t, err)

	_, err = r.Iterate(ctx, b.ID, "description: warmer")
	tester.NoErr(t, err)
}

func TestIterateVersionConflict(t *testing.T) {
	r := newRunner(t, pipelineFake())
	ctx := context.Background()

	b, err := r.CreateBuild(ctx, "s1", "", t2.CreativeSummary{})
	tester.NoErr(t, err)
	_, err = r.RunBuild(ctx, b.ID)
	tester.NoErr(t, err)

	// A concurrent writer bumps the artifact after our read.
	loaded, err := r.Store.GetBuild(ctx, b.ID)
	tester.NoErr(t, err)
	_, err = r.Store.UpdateArtifact(ctx, b.ID, *loaded.Artifact, loaded.Artifact.Version)
	tester.NoErr(t, err)

	// Iterate reads fresh state, so force the stale path directly.
	_, err = r.Store.UpdateArtifact(ctx, b.ID, t2.BuildArtifact{Code: "stale"}, loaded.Artifact.Version)
	tester.ErrIs(t, err, store.ErrVersionConflict)
}
