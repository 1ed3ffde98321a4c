package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTierNotFound = errors.New("tier not found")
	ErrItemNotFound = errors.New("sync queue item not found")

	// ErrMissingOldTier marks an upgrade item that carries no prior-tier
	// reference. This is bad reference data and is never retried.
	ErrMissingOldTier = errors.New("upgrade requires an old tier reference")
)

// Provisioning stage names carried by ProvisioningError.
const (
	StageClub         = "club"
	StagePromotion    = "promotion"
	StagePromotionSet = "promotionSet"
	StageLoyaltyTier  = "loyaltyTier"
)

// ProvisioningError is the single terminal error a provisioning caller
// sees. Compensation has already run by the time it surfaces.
type ProvisioningError struct {
	Stage string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at stage %q: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// TransitionError is returned when a queue item state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// ClassifiedError tags a gateway failure as retryable (network, timeout,
// rate limiting, transient 5xx) or fatal (rejected request shape, bad
// reference data). The sync queue processor drives its state machine off
// this classification.
type ClassifiedError struct {
	Retryable bool
	Err       error
}

func (e *ClassifiedError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s: %v", kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Retryable wraps err as a transient failure worth another attempt.
func Retryable(err error) error {
	return &ClassifiedError{Retryable: true, Err: err}
}

// Fatal wraps err as a permanent failure that must not be retried.
func Fatal(err error) error {
	return &ClassifiedError{Retryable: false, Err: err}
}

// IsRetryable reports whether err is classified as transient. Unclassified
// errors are treated as fatal: retrying an unknown failure against a
// non-transactional external system risks duplicate side effects.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Retryable
}
