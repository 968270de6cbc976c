package models

import "strings"

// ReleaseTarget identifies a deployment or build destination for a release.
type ReleaseTarget string

const (
	TargetGeneral ReleaseTarget = "general"
	TargetMobile  ReleaseTarget = "mobile"
	TargetDesktop ReleaseTarget = "desktop"
	TargetCloud   ReleaseTarget = "cloud"
	TargetSDK     ReleaseTarget = "sdk"
)

// MaxTargets bounds how many targets a single release may address.
const MaxTargets = 4

// KnownTargets lists every valid release target.
func KnownTargets() []ReleaseTarget {
	return []ReleaseTarget{TargetGeneral, TargetMobile, TargetDesktop, TargetCloud, TargetSDK}
}

// IsKnownTarget reports whether value names a valid release target.
func IsKnownTarget(value string) bool {
	for _, t := range KnownTargets() {
		if string(t) == value {
			return true
		}
	}

	return false
}

// ReleaseMetadata is the classified view of a release. It is produced once
// per inbound release event and never mutated afterwards.
type ReleaseMetadata struct {
	Type       ReleaseTarget   `json:"type"`
	Targets    []ReleaseTarget `json:"targets"`
	Version    string          `json:"version"`
	Tag        string          `json:"tag"`
	Name       string          `json:"name"`
	Prerelease bool            `json:"prerelease"`
	Draft      bool            `json:"draft"`
}

// Validate enforces the metadata invariants: non-empty version, 1..MaxTargets
// targets, and mutual exclusivity of the general target.
func (m *ReleaseMetadata) Validate() error {
	if m.Version == "" {
		return NewValidationError("version", "version cannot be empty", ErrEmptyVersion)
	}

	if len(m.Targets) == 0 {
		return NewValidationError("targets", "at least one target is required", ErrNoTargets)
	}

	if len(m.Targets) > MaxTargets {
		return NewValidationError("targets", "too many release targets: "+joinTargets(m.Targets), ErrTooManyTargets)
	}

	if len(m.Targets) > 1 {
		for _, t := range m.Targets {
			if t == TargetGeneral {
				return NewValidationError("targets", "general cannot be combined with "+joinTargets(m.Targets), ErrGeneralNotExclusive)
			}
		}
	}

	return nil
}

// HasTarget reports whether the metadata addresses the given target.
func (m *ReleaseMetadata) HasTarget(target ReleaseTarget) bool {
	for _, t := range m.Targets {
		if t == target {
			return true
		}
	}

	return false
}

func joinTargets(targets []ReleaseTarget) string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t))
	}

	return strings.Join(names, ", ")
}

// ReleaseAction is the declared action of an inbound release event.
type ReleaseAction string

const (
	ActionPublished   ReleaseAction = "published"
	ActionCreated     ReleaseAction = "created"
	ActionEdited      ReleaseAction = "edited"
	ActionPrereleased ReleaseAction = "prereleased"
)

// Release carries the release fields shiphook consumes from the webhook payload.
type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"    validate:"required,max=128"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url"`
}

// RepositoryRef identifies the repository a release event belongs to.
type RepositoryRef struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name" validate:"required,max=100"`
}

// WebhookEvent is the transient unit of work for one inbound webhook request.
// RawPayload holds the exact bytes that were signed; it must never be
// re-serialized before signature verification.
type WebhookEvent struct {
	DeliveryID string
	EventType  string
	Action     ReleaseAction
	RawPayload []byte
	Release    *Release
	Repository RepositoryRef
}
