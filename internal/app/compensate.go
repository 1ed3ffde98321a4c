package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vintbound/clubsync/internal/domain"
)

// Compensate deletes every resource recorded in the set, in strict reverse
// creation order. It never returns an error: each deletion is attempted
// independently, failures are collected and logged for manual operator
// follow-up, and the original provisioning error remains the one the
// caller sees. Partial cleanup is strictly better than no cleanup.
func Compensate(ctx context.Context, set *domain.ProvisionedResourceSet) {
	resources := set.Resources()

	var failures []string
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]

		if err := r.Delete(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s %s: %v", r.Type, r.ID, err))
			slog.ErrorContext(ctx, "compensation delete failed",
				"resource_type", string(r.Type),
				"resource_id", r.ID,
				"error", err,
			)
			continue
		}

		slog.InfoContext(ctx, "compensated resource",
			"resource_type", string(r.Type),
			"resource_id", r.ID,
		)
	}

	if len(failures) > 0 {
		slog.ErrorContext(ctx, "compensation incomplete, manual reconciliation required",
			"failed_deletions", failures,
		)
	}
}
