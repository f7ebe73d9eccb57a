package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamcard/internal/blueprint"
	t2 "dreamcard/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"))
}

func TestBuildRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := t2.Build{
		ID:        "b1",
		SessionID: "s1",
		Status:    t2.BuildPending,
		CreativeSummary: t2.CreativeSummary{
			RecipientName: "Danielle",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutBuild(ctx, b))

	got, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Danielle", got.CreativeSummary.RecipientName)
	assert.Equal(t, t2.BuildPending, got.Status)

	_, err = s.GetBuild(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, t2.Build{ID: "b1", Status: t2.BuildPending}))

	got, err := s.UpdateBuild(ctx, "b1", func(b *t2.Build) {
		b.Status = t2.BuildReady
		b.TokenCostCents += 2
	})
	require.NoError(t, err)
	assert.Equal(t, t2.BuildReady, got.Status)
	assert.Equal(t, 2, got.TokenCostCents)

	_, err = s.UpdateBuild(ctx, "nope", func(*t2.Build) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateArtifactVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, t2.Build{ID: "b1", Status: t2.BuildReady}))

	art := t2.BuildArtifact{
		Code:      "v1 code",
		Blueprint: blueprint.Blueprint{Heading: "Hi"},
		CreatedAt: time.Now().UTC(),
	}
	got, err := s.UpdateArtifact(ctx, "b1", art, 0)
	require.NoError(t, err)
	require.NotNil(t, got.Artifact)
	assert.Equal(t, 1, got.Artifact.Version)
	require.NotNil(t, got.Blueprint)
	assert.Equal(t, "Hi", got.Blueprint.Heading)

	// Second writer still holding version 0 must lose.
	_, err = s.UpdateArtifact(ctx, "b1", t2.BuildArtifact{Code: "stale"}, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// A writer that reloaded wins.
	got, err = s.UpdateArtifact(ctx, "b1", t2.BuildArtifact{Code: "v2 code"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Artifact.Version)
	assert.Equal(t, "v2 code", got.Artifact.Code)
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := t2.Session{ID: "s1", DeviceID: "d1", Phase: t2.PhaseCollector}
	require.NoError(t, s.PutSession(ctx, sess))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, t2.PhaseCollector, got.Phase)

	got, err = s.UpdateSession(ctx, "s1", func(x *t2.Session) {
		x.Phase = t2.PhaseEditor
		x.CollectorMessages = append(x.CollectorMessages, t2.ChatMessage{Text: "hi", Sender: "user"})
	})
	require.NoError(t, err)
	assert.Equal(t, t2.PhaseEditor, got.Phase)
	assert.Len(t, got.CollectorMessages, 1)
}

func TestFilePersistenceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s := New(path)
	require.NoError(t, s.PutBuild(ctx, t2.Build{ID: "b1", Status: t2.BuildReady}))
	require.NoError(t, s.PutSession(ctx, t2.Session{ID: "s1", Phase: t2.PhaseApproved}))
	require.NoError(t, s.Close())

	reopened := New(path)
	got, err := reopened.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, t2.BuildReady, got.Status)

	sess, err := reopened.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, t2.PhaseApproved, sess.Phase)
}

func TestBuildCacheInvalidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, t2.Build{ID: "b1", Status: t2.BuildPending}))

	// Prime the cache, then write through and read again.
	_, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	_, err = s.UpdateBuild(ctx, "b1", func(b *t2.Build) { b.Status = t2.BuildFailed })
	require.NoError(t, err)

	got, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, t2.BuildFailed, got.Status)
}
