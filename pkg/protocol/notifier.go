package protocol

import (
	"context"

	"github.com/dukex/shiphook/pkg/models"
)

// Notifier sends one notification per event outcome. Sends may fail; the
// caller decides which failures are load-bearing.
type Notifier interface {
	Send(ctx context.Context, req *models.NotificationRequest) error
}
