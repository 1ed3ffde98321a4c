package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/vintbound/clubsync/internal/domain"
)

// NotificationWorker delivers lifecycle messages from the River queue
// through the configured messaging provider. River handles retries and
// job-level backoff when delivery fails.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]
	messenger domain.Messenger
}

// Work delivers a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	slog.InfoContext(ctx, "delivering notification",
		"kind", job.Args.NotificationKind,
		"client_ref", job.Args.ClientRef,
		"customer_ref", job.Args.CustomerRef,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	return w.messenger.Send(ctx, domain.Message{
		Kind:        job.Args.NotificationKind,
		ClientRef:   job.Args.ClientRef,
		CustomerRef: job.Args.CustomerRef,
		TierRef:     job.Args.TierRef,
		OldTierRef:  job.Args.OldTierRef,
	})
}
