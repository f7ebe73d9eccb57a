package agents

import (
	"context"
	"testing"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	"dreamcard/internal/tester"
	t2 "dreamcard/internal/types"
)

func TestCodeDiffRatioBoundaries(t *testing.T) {
	code := "line one\nline two\nline three"
	tester.Eq(t, CodeDiffRatio(code, code), 1.0)
	tester.Eq(t, CodeDiffRatio("", ""), 1.0)
	tester.Eq(t, CodeDiffRatio("", "anything"), 1.0, "no previous code means nothing to diverge from")
	tester.Eq(t, CodeDiffRatio("a\nb\nc", "x\ny\nz"), 0.0)
}

func TestCodeDiffRatioIgnoresBlankLines(t *testing.T) {
	a := "one\n\ntwo\n\n"
	b := "one\ntwo"
	tester.Eq(t, CodeDiffRatio(a, b), 1.0)
}

func TestCodeDiffRatioPartialOverlap(t *testing.T) {
	a := "a\nb\nc\nd"
	b := "a\nb\nx\ny"
	// intersection 2, union 6
	got := CodeDiffRatio(a, b)
	tester.True(t, got > 0.32 && got < 0.34, got)
}

func TestShouldRealign(t *testing.T) {
	prev := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"

	tester.False(t, ShouldRealign(prev, prev, DefaultDiffThreshold))
	tester.False(t, ShouldRealign("", "totally new code", DefaultDiffThreshold))
	tester.True(t, ShouldRealign(prev, "q\nr\ns\nt\nu\nv\nw\nx\ny\nz", DefaultDiffThreshold))
}

func TestWatcherAcceptsFirstGeneration(t *testing.T) {
	w := &Watcher{Engineer: &Engineer{LLM: llm.Disabled{}}}
	next := t2.BuildArtifact{Code: "whatever"}

	out, err := w.Run(context.Background(), nil, next)
	tester.NoErr(t, err)
	tester.Eq(t, out.Code, "whatever")
}

func TestWatcherRealignsOnDrift(t *testing.T) {
	fake := llm.NewFakeClient().Respond("realign", "const App = () => null;\nexport default App;")
	w := &Watcher{Engineer: &Engineer{LLM: fake}}

	prev := &t2.BuildArtifact{Code: "a\nb\nc\nd\ne\nf"}
	next := t2.BuildArtifact{
		Code:      "u\nv\nw\nx\ny\nz",
		Blueprint: blueprint.Blueprint{Heading: "hi"},
	}

	out, err := w.Run(context.Background(), prev, next)
	tester.NoErr(t, err)
	tester.Contains(t, out.Code, "export default App")
	tester.Eq(t, out.PreviousCode, prev.Code)
}

func TestWatcherKeepsSmallEdit(t *testing.T) {
	w := &Watcher{Engineer: &Engineer{LLM: llm.Disabled{}}}

	prev := &t2.BuildArtifact{Code: "a\nb\nc\nd\ne\nf"}
	next := t2.BuildArtifact{Code: "a\nb\nc\nd\ne\nCHANGED"}

	out, err := w.Run(context.Background(), prev, next)
	tester.NoErr(t, err)
	tester.Eq(t, out.Code, next.Code)
}
