package protocol

import (
	"context"

	"github.com/dukex/shiphook/pkg/models"
)

// ReleaseAnnotator writes a cosmetic processing note back to the originating
// release record. Annotation is best-effort: callers log failures and move on.
type ReleaseAnnotator interface {
	Annotate(ctx context.Context, repo models.RepositoryRef, releaseID int64, note string) error
}
