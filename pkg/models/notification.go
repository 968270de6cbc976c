package models

import "time"

// NotificationKind classifies outbound notifications by event outcome.
type NotificationKind string

const (
	NotificationReleasePublished    NotificationKind = "release_published"
	NotificationPrereleasePublished NotificationKind = "prerelease_published"
	NotificationBuildFailure        NotificationKind = "build_failure"
	NotificationInvalidMetadata     NotificationKind = "invalid_metadata"
)

// NotificationRequest is handed to the external notifier and not retained.
type NotificationRequest struct {
	Kind       NotificationKind `json:"kind"`
	Repository string           `json:"repository"`
	Release    *ReleaseMetadata `json:"release,omitempty"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewNotificationRequest creates a notification request stamped with the current time.
func NewNotificationRequest(kind NotificationKind, repository string) *NotificationRequest {
	return &NotificationRequest{
		Kind:       kind,
		Repository: repository,
		Timestamp:  time.Now().UTC(),
	}
}
