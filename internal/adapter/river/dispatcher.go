package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/vintbound/clubsync/internal/domain"
)

// Compile-time check: Dispatcher implements domain.NotificationDispatcher.
var _ domain.NotificationDispatcher = (*Dispatcher)(nil)

// Notification kinds routed through the job queue.
const (
	KindExpiration    = "expiration"
	KindUpgrade       = "upgrade"
	KindMonthlyStatus = "monthly_status"
)

// NotificationJobArgs carries the data needed to deliver one lifecycle
// message asynchronously. River serializes this as JSON into its job queue
// table, so the worker never needs to query the application database.
type NotificationJobArgs struct {
	NotificationKind string `json:"kind"`
	ClientRef        string `json:"client_ref"`
	CustomerRef      string `json:"customer_ref"`
	TierRef          string `json:"tier_ref"`
	OldTierRef       string `json:"old_tier_ref,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "notification.send" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Dispatcher implements domain.NotificationDispatcher by enqueuing River
// jobs. Delivery happens out of band in NotificationWorker, so a slow
// messaging provider never stalls queue processing.
type Dispatcher struct {
	client *Client
}

// NewDispatcher creates a dispatcher backed by the given River client.
func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// NotifyExpiration enqueues a membership-expiration message.
func (d *Dispatcher) NotifyExpiration(ctx context.Context, clientRef, customerRef, tierRef string) error {
	return d.enqueue(ctx, NotificationJobArgs{
		NotificationKind: KindExpiration,
		ClientRef:        clientRef,
		CustomerRef:      customerRef,
		TierRef:          tierRef,
	})
}

// NotifyUpgrade enqueues a membership-upgrade message.
func (d *Dispatcher) NotifyUpgrade(ctx context.Context, clientRef, customerRef, oldTierRef, newTierRef string) error {
	return d.enqueue(ctx, NotificationJobArgs{
		NotificationKind: KindUpgrade,
		ClientRef:        clientRef,
		CustomerRef:      customerRef,
		TierRef:          newTierRef,
		OldTierRef:       oldTierRef,
	})
}

// NotifyMonthlyStatus enqueues a monthly membership-status message.
func (d *Dispatcher) NotifyMonthlyStatus(ctx context.Context, clientRef, customerRef, tierRef string) error {
	return d.enqueue(ctx, NotificationJobArgs{
		NotificationKind: KindMonthlyStatus,
		ClientRef:        clientRef,
		CustomerRef:      customerRef,
		TierRef:          tierRef,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, args NotificationJobArgs) error {
	if _, err := d.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueuing %s notification: %w", args.NotificationKind, err)
	}
	return nil
}
