package sync

import (
	"context"

	"github.com/kshitijomkar/ledger/internal/models"
)

// Remote is the server-side system of record.
// Failures and timeouts are reported as errors; the engine treats them all
// as transport failures.
//
//go:generate mockgen -source=remote.go -destination=remote_mock.go -package=sync
type Remote interface {
	// Pull returns one page of server changes made after req.Since.
	Pull(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error)

	// Push submits a batch of queued changes. The server must accept a
	// change id it already applied without applying it twice.
	Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error)
}
