package domain

import "time"

// Action is the membership-lifecycle change a queue item requests.
type Action string

const (
	ActionCancelMembership  Action = "cancel_membership"
	ActionUpgradeMembership Action = "upgrade_membership"
)

// Status represents the processing state of a sync queue item.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusSucceeded    Status = "succeeded"
	StatusRetryPending Status = "retry_pending"
	StatusDeadLetter   Status = "dead_letter"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventClaim      Event = "claim"
	EventSucceed    Event = "succeed"
	EventRetry      Event = "retry"
	EventRequeue    Event = "requeue"
	EventDeadLetter Event = "dead_letter"
)

// Transition defines a valid state change: an event moves an item from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the queue item lifecycle.
// This is domain knowledge consumed by the FSM adapter. Items never move
// out of succeeded; dead_letter is left only by an operator requeue.
var Transitions = []Transition{
	{Event: EventClaim, Src: StatusQueued, Dst: StatusProcessing},
	{Event: EventSucceed, Src: StatusProcessing, Dst: StatusSucceeded},
	{Event: EventRetry, Src: StatusProcessing, Dst: StatusRetryPending},
	{Event: EventRequeue, Src: StatusRetryPending, Dst: StatusQueued},
	{Event: EventRequeue, Src: StatusDeadLetter, Dst: StatusQueued},
	{Event: EventDeadLetter, Src: StatusProcessing, Dst: StatusDeadLetter},
}

// Reasons recorded on terminal or waiting states so operators can tell
// apart retry exhaustion, invalid data, and the partial-upgrade gap.
const (
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonFatalError       = "fatal_error"
	ReasonPartialUpgrade   = "partial_upgrade"
)

// SyncQueueItem is a durable, at-least-once-delivered unit of membership
// sync work. ClubRef and MembershipRef are empty for platforms without the
// corresponding concept; OldTierRef is required only for upgrades.
type SyncQueueItem struct {
	ID            string
	Action        Action
	ClientRef     string
	TierRef       string
	ClubRef       string
	MembershipRef string
	CustomerRef   string
	OldTierRef    string
	OldClubRef    string
	Status        Status
	Attempts      int
	Reason        string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSyncQueueItem creates a queue item in the initial "queued" state.
func NewSyncQueueItem(id string, action Action, clientRef, tierRef, customerRef string) SyncQueueItem {
	now := time.Now().UTC()
	return SyncQueueItem{
		ID:          id,
		Action:      action,
		ClientRef:   clientRef,
		TierRef:     tierRef,
		CustomerRef: customerRef,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
