package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// TierRepository implements domain.TierRepository using SQLite.
type TierRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*TierRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*TierRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &TierRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *TierRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *TierRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

func (r *TierRepository) Create(ctx context.Context, t domain.Tier) error {
	promos, err := json.Marshal(t.Promotions)
	if err != nil {
		return fmt.Errorf("encoding promotions: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tiers (id, name, duration_months, min_purchase, promotions,
		   loyalty_enabled, loyalty_earn_rate, external_club_id, promotion_set_id,
		   loyalty_tier_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.DurationMonths, t.MinPurchase.String(), string(promos),
		boolToInt(t.Loyalty.Enabled), t.Loyalty.EarnRate.String(),
		t.ExternalClubID, t.PromotionSetID, t.LoyaltyTierID,
		t.CreatedAt.Format(timeFormat),
		t.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting tier: %w", err)
	}
	return nil
}

func (r *TierRepository) GetByID(ctx context.Context, id string) (domain.Tier, error) {
	return r.scanTier(r.db.QueryRowContext(ctx,
		`SELECT id, name, duration_months, min_purchase, promotions,
		   loyalty_enabled, loyalty_earn_rate, external_club_id, promotion_set_id,
		   loyalty_tier_id, created_at, updated_at
		 FROM tiers WHERE id = ?`, id,
	))
}

func (r *TierRepository) List(ctx context.Context, filter domain.TierFilter) ([]domain.Tier, error) {
	query := `SELECT id, name, duration_months, min_purchase, promotions,
	   loyalty_enabled, loyalty_earn_rate, external_club_id, promotion_set_id,
	   loyalty_tier_id, created_at, updated_at FROM tiers`
	var args []any

	if filter.Provisioned != nil {
		if *filter.Provisioned {
			query += ` WHERE external_club_id != ''`
		} else {
			query += ` WHERE external_club_id = ''`
		}
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.Tier
	for rows.Next() {
		t, err := r.scanTierFromRows(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}

	return tiers, rows.Err()
}

func (r *TierRepository) Update(ctx context.Context, t domain.Tier) error {
	promos, err := json.Marshal(t.Promotions)
	if err != nil {
		return fmt.Errorf("encoding promotions: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tiers SET name = ?, duration_months = ?, min_purchase = ?, promotions = ?,
		   loyalty_enabled = ?, loyalty_earn_rate = ?, external_club_id = ?,
		   promotion_set_id = ?, loyalty_tier_id = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.DurationMonths, t.MinPurchase.String(), string(promos),
		boolToInt(t.Loyalty.Enabled), t.Loyalty.EarnRate.String(),
		t.ExternalClubID, t.PromotionSetID, t.LoyaltyTierID,
		time.Now().UTC().Format(timeFormat), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tier: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTierNotFound
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func (r *TierRepository) scanTier(row *sql.Row) (domain.Tier, error) {
	t, err := scanTierFields(row)
	if err == sql.ErrNoRows {
		return domain.Tier{}, domain.ErrTierNotFound
	}
	return t, err
}

func (r *TierRepository) scanTierFromRows(rows *sql.Rows) (domain.Tier, error) {
	return scanTierFields(rows)
}

func scanTierFields(s scanner) (domain.Tier, error) {
	var t domain.Tier
	var minPurchase, promos, earnRate, createdAt, updatedAt string
	var loyaltyEnabled int

	err := s.Scan(&t.ID, &t.Name, &t.DurationMonths, &minPurchase, &promos,
		&loyaltyEnabled, &earnRate, &t.ExternalClubID, &t.PromotionSetID,
		&t.LoyaltyTierID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Tier{}, err
		}
		return domain.Tier{}, fmt.Errorf("scanning tier: %w", err)
	}

	if t.MinPurchase, err = decimal.NewFromString(minPurchase); err != nil {
		return domain.Tier{}, fmt.Errorf("parsing min purchase: %w", err)
	}
	if err := json.Unmarshal([]byte(promos), &t.Promotions); err != nil {
		return domain.Tier{}, fmt.Errorf("decoding promotions: %w", err)
	}
	t.Loyalty.Enabled = loyaltyEnabled != 0
	if t.Loyalty.EarnRate, err = decimal.NewFromString(earnRate); err != nil {
		return domain.Tier{}, fmt.Errorf("parsing earn rate: %w", err)
	}
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
