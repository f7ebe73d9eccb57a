package types

import (
	"time"

	"dreamcard/internal/blueprint"
)

// Sender = person designing the card in the collector chat.
// Receiver = person who later claims the card and drives the experience.

type SessionID = string
type UserID = string
type BuildID = string
type CardID = string

// ChatMessage is one turn of the collector or editor dialogue. The sequence
// is append-only within a session; turns are never mutated.
type ChatMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"` // "user" | "ai"
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp"` // RFC3339
}

const (
	MessageTypeConfirmation = "confirmation"
	MessageTypeExport       = "export"
)

// CreativeSummary is the Collector's distilled output, consumed by the
// Architect. Replaced wholesale on a later edit, never patched field by
// field.
type CreativeSummary struct {
	RecipientName       string `json:"recipientName"`
	SenderName          string `json:"senderName"`
	SenderVibe          string `json:"senderVibe"`
	CentralSubject      string `json:"centralSubject"`
	CentralSubjectStyle string `json:"centralSubjectStyle,omitempty"`
	Tone                string `json:"tone"`
	ProductConfirmed    bool   `json:"productConfirmed"`
	Notes               string `json:"notes,omitempty"`
	// Prose approval paragraph shown to the sender when the completion
	// check passed.
	Prose string `json:"prose,omitempty"`
}

type SessionPhase string

const (
	PhaseCollector SessionPhase = "collector"
	PhaseApproved  SessionPhase = "approved"
	PhaseBuilding  SessionPhase = "building"
	PhaseEditor    SessionPhase = "editor"
	PhaseExported  SessionPhase = "exported"
)

type Session struct {
	ID                SessionID        `json:"id"`
	DeviceID          string           `json:"deviceId"`
	UserID            UserID           `json:"userId,omitempty"`
	Phase             SessionPhase     `json:"phase"`
	CollectorMessages []ChatMessage    `json:"collectorMessages,omitempty"`
	CreativeSummary   *CreativeSummary `json:"creativeSummary,omitempty"`
	BuildID           BuildID          `json:"buildId,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

type BuildStatus string

const (
	BuildPending BuildStatus = "pending"
	BuildReady   BuildStatus = "ready"
	BuildFailed  BuildStatus = "failed"
)

// Build ties a session to its pipeline progress. Status moves pending ->
// ready on pipeline success or pending -> failed when a stage errors; ready
// builds may be iterated until the cost cap is hit.
type Build struct {
	ID              BuildID               `json:"id"`
	SessionID       SessionID             `json:"sessionId"`
	UserID          UserID                `json:"userId,omitempty"`
	Status          BuildStatus           `json:"status"`
	CreativeSummary CreativeSummary       `json:"creativeSummary"`
	Blueprint       *blueprint.Blueprint  `json:"blueprint,omitempty"`
	Artifact        *BuildArtifact        `json:"artifact,omitempty"`
	TokenCostCents  int                   `json:"tokenCostCents"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	Error           string                `json:"error,omitempty"`
}

// BuildArtifact is the Engineer's output. A new artifact supersedes the
// previous one on each successful iterate cycle; artifacts are never
// mutated in place. Version supports optimistic concurrency on updates.
type BuildArtifact struct {
	Code         string              `json:"code"`
	Blueprint    blueprint.Blueprint `json:"blueprint"`
	CreatedAt    time.Time           `json:"createdAt"`
	PreviousCode string              `json:"previousCode,omitempty"`
	Version      int                 `json:"version"`
}
