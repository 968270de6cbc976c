// Package web provides the HTTP boundary for inbound release webhooks.
package web

import "github.com/dukex/shiphook/pkg/models"

// Headers consumed at the webhook boundary.
const (
	SignatureHeader = "X-Hub-Signature-256"
	EventTypeHeader = "X-Hub-Event"
	DeliveryHeader  = "X-Hub-Delivery"
)

// ReleaseEventType is the only event type the webhook endpoint processes.
const ReleaseEventType = "release"

// ReleasePayload is the parsed shape of an inbound release webhook body.
type ReleasePayload struct {
	Action     string             `json:"action"     validate:"required"`
	Release    *models.Release    `json:"release"    validate:"required"`
	Repository *RepositoryPayload `json:"repository" validate:"required"`
}

// RepositoryPayload carries the repository coordinates of the payload.
type RepositoryPayload struct {
	Name     string       `json:"name"`
	FullName string       `json:"full_name" validate:"required,max=100"`
	Owner    OwnerPayload `json:"owner"`
}

// OwnerPayload identifies the repository owner.
type OwnerPayload struct {
	Login string `json:"login"`
}
