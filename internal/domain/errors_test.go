package domain_test

import (
	"errors"
	"testing"

	"github.com/vintbound/clubsync/internal/domain"
)

func TestProvisioningError_Error(t *testing.T) {
	err := &domain.ProvisioningError{
		Stage: domain.StagePromotionSet,
		Err:   errors.New("boom"),
	}
	want := `provisioning failed at stage "promotionSet": boom`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Event:   domain.EventSucceed,
		Current: domain.StatusQueued,
	}
	want := `event "succeed" is not valid from state "queued"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable", domain.Retryable(errors.New("timeout")), true},
		{"fatal", domain.Fatal(errors.New("bad request")), false},
		{"unclassified", errors.New("mystery"), false},
		{"wrapped retryable", &domain.ProvisioningError{Stage: domain.StageClub, Err: domain.Retryable(errors.New("503"))}, true},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		if got := domain.IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := domain.Retryable(inner)
	if !errors.Is(err, inner) {
		t.Error("Retryable should wrap the original error")
	}
}
