// Package protocol defines the contracts between shiphook's event pipeline
// and its external collaborators.
package protocol

import (
	"context"

	"github.com/dukex/shiphook/pkg/models"
)

// WorkflowDispatcher hands a workflow to the external execution system.
// The contract ends at "the call was attempted and did not fail".
// Execution outcome is out of scope and there are no retries.
type WorkflowDispatcher interface {
	Dispatch(ctx context.Context, repo models.RepositoryRef, workflow models.Workflow) error
}
