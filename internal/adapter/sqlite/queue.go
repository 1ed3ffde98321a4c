package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vintbound/clubsync/internal/domain"
)

// SyncQueueRepository implements domain.SyncQueueRepository using SQLite.
// The claim transition relies on a conditional UPDATE, so concurrent
// workers can never claim the same item twice.
type SyncQueueRepository struct {
	db *sql.DB
}

// NewSyncQueue wraps an already-migrated database connection.
func NewSyncQueue(db *sql.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

const queueColumns = `id, action, client_ref, tier_ref, club_ref, membership_ref,
	customer_ref, old_tier_ref, old_club_ref, status, attempts, reason,
	next_attempt_at, created_at, updated_at`

func (r *SyncQueueRepository) Enqueue(ctx context.Context, item domain.SyncQueueItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (`+queueColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Action), item.ClientRef, item.TierRef, item.ClubRef,
		item.MembershipRef, item.CustomerRef, item.OldTierRef, item.OldClubRef,
		string(item.Status), item.Attempts, item.Reason,
		formatNullableTime(item.NextAttemptAt),
		item.CreatedAt.Format(timeFormat),
		item.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting sync queue item: %w", err)
	}
	return nil
}

func (r *SyncQueueRepository) GetByID(ctx context.Context, id string) (domain.SyncQueueItem, error) {
	item, err := scanQueueItem(r.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return domain.SyncQueueItem{}, domain.ErrItemNotFound
	}
	return item, err
}

func (r *SyncQueueRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.SyncQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE status = ? ORDER BY created_at DESC`
	args := []any{string(status)}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sync queue items: %w", err)
	}
	defer rows.Close()

	var items []domain.SyncQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Claim moves one item from queued to processing. The conditional UPDATE is
// the mutual exclusion: of two concurrent claims for the same id, exactly
// one affects a row; the other sees ErrItemNotFound and skips.
func (r *SyncQueueRepository) Claim(ctx context.Context, id string) (domain.SyncQueueItem, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.StatusProcessing), time.Now().UTC().Format(timeFormat),
		id, string(domain.StatusQueued),
	)
	if err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("claiming item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.SyncQueueItem{}, domain.ErrItemNotFound
	}

	return r.GetByID(ctx, id)
}

// ClaimBatch claims up to limit queued items, each through the same
// conditional UPDATE as Claim, so a concurrent batch never overlaps.
func (r *SyncQueueRepository) ClaimBatch(ctx context.Context, limit int) ([]domain.SyncQueueItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sync_queue WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(domain.StatusQueued), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting queued items: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning queued id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var items []domain.SyncQueueItem
	for _, id := range ids {
		item, err := r.Claim(ctx, id)
		if err == domain.ErrItemNotFound {
			// Another worker won the race for this item.
			continue
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (r *SyncQueueRepository) Update(ctx context.Context, item domain.SyncQueueItem) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = ?, reason = ?,
		   next_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(item.Status), item.Attempts, item.Reason,
		formatNullableTime(item.NextAttemptAt),
		time.Now().UTC().Format(timeFormat), item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating sync queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (r *SyncQueueRepository) RequeueDue(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = ?
		 WHERE status = ? AND next_attempt_at <= ?`,
		string(domain.StatusQueued), time.Now().UTC().Format(timeFormat),
		string(domain.StatusRetryPending), time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("requeuing due items: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rows), nil
}

func scanQueueItem(s scanner) (domain.SyncQueueItem, error) {
	var item domain.SyncQueueItem
	var action, status, nextAttemptAt, createdAt, updatedAt string

	err := s.Scan(&item.ID, &action, &item.ClientRef, &item.TierRef, &item.ClubRef,
		&item.MembershipRef, &item.CustomerRef, &item.OldTierRef, &item.OldClubRef,
		&status, &item.Attempts, &item.Reason, &nextAttemptAt, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.SyncQueueItem{}, err
		}
		return domain.SyncQueueItem{}, fmt.Errorf("scanning sync queue item: %w", err)
	}

	item.Action = domain.Action(action)
	item.Status = domain.Status(status)
	if nextAttemptAt != "" {
		item.NextAttemptAt, _ = time.Parse(timeFormat, nextAttemptAt)
	}
	item.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	item.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return item, nil
}

func formatNullableTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}
