// Package devstate holds the dev-only "current pipeline run" snapshot used
// by the preview endpoints. It is an explicit, injected single-slot store so
// parallel tests never share state through a package global.
package devstate

import (
	"sync"
	"time"

	"dreamcard/internal/blueprint"
	t "dreamcard/internal/types"
)

// Snapshot is the most recent pipeline result kept for inspection.
type Snapshot struct {
	Summary   *t.CreativeSummary   `json:"summary,omitempty"`
	Blueprint *blueprint.Blueprint `json:"blueprint,omitempty"`
	Artifact  *t.BuildArtifact     `json:"artifact,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Slot is a single-slot snapshot store. The zero value is ready to use.
type Slot struct {
	mu   sync.RWMutex
	cur  Snapshot
	seen bool
}

func NewSlot() *Slot { return &Slot{} }

// Set replaces the snapshot wholesale.
func (s *Slot) Set(snap Snapshot) {
	snap.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.cur = snap
	s.seen = true
	s.mu.Unlock()
}

// Update patches the current snapshot in place under the lock.
func (s *Slot) Update(patch func(*Snapshot)) {
	s.mu.Lock()
	patch(&s.cur)
	s.cur.UpdatedAt = time.Now().UTC()
	s.seen = true
	s.mu.Unlock()
}

// Get returns the snapshot and whether anything has been stored yet.
func (s *Slot) Get() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.seen
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.cur = Snapshot{}
	s.seen = false
	s.mu.Unlock()
}
