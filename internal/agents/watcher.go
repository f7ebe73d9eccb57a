package agents

import (
	"context"
	"strings"

	t "dreamcard/internal/types"
)

// DefaultDiffThreshold is the fraction of allowed divergence between two
// consecutive code generations. Heuristic, tuned for feel rather than
// correctness; override per Watcher if needed.
const DefaultDiffThreshold = 0.6

// CodeDiffRatio computes a Jaccard-style similarity over the non-blank line
// sets of two code versions: 1 means identical, 0 means fully disjoint.
// No previous code means nothing to diverge from, so the ratio is 1.
func CodeDiffRatio(previousCode, newCode string) float64 {
	if previousCode == "" {
		return 1
	}
	a := nonBlankLines(previousCode)
	b := nonBlankLines(newCode)
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	setA := make(map[string]struct{}, len(a))
	for _, line := range a {
		setA[line] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, line := range b {
		setB[line] = struct{}{}
	}

	same := 0
	union := len(setB)
	for line := range setA {
		if _, ok := setB[line]; ok {
			same++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(same) / float64(union)
}

func nonBlankLines(code string) []string {
	var out []string
	for _, line := range strings.Split(code, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ShouldRealign reports whether the divergence between previous and new code
// exceeds threshold. First generations (empty previous) never realign.
func ShouldRealign(previousCode, newCode string, threshold float64) bool {
	return CodeDiffRatio(previousCode, newCode) < 1-threshold
}

// Watcher guards against structural drift across an editing session. After
// each iterative regeneration it either accepts the new artifact or replaces
// it with a realigned one constrained to the previous code's structure.
type Watcher struct {
	Engineer  *Engineer
	Threshold float64
}

func (w *Watcher) threshold() float64 {
	if w.Threshold > 0 {
		return w.Threshold
	}
	return DefaultDiffThreshold
}

// Run compares the previous artifact's code against the new one. When drift
// exceeds the threshold, the new code is discarded in favor of a realigned
// regeneration; the realignment's own failure propagates as a pipeline
// failure.
func (w *Watcher) Run(ctx context.Context, previous *t.BuildArtifact, next t.BuildArtifact) (t.BuildArtifact, error) {
	if previous == nil || previous.Code == "" {
		return next, nil
	}
	if !ShouldRealign(previous.Code, next.Code, w.threshold()) {
		return next, nil
	}
	return w.Engineer.Realign(ctx, previous.Code, next.Blueprint)
}
