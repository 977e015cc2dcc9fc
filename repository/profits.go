package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ads-manager/models"

	"github.com/jmoiron/sqlx"
)

// ProfitRepository maintains the per-user profit ledger
type ProfitRepository struct {
	db *sqlx.DB
}

func NewProfitRepository(db *sqlx.DB) *ProfitRepository {
	return &ProfitRepository{db: db}
}

func (r *ProfitRepository) Find(ctx context.Context, userID int) (*models.ProfitEntry, error) {
	return findProfit(ctx, r.db, userID)
}

// Total returns the ledger total of a user, zero when no row exists
func (r *ProfitRepository) Total(ctx context.Context, userID int) (int64, error) {
	entry, err := r.Find(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Total, nil
}

// Add increments the user's running total, creating the row on first use
func (r *ProfitRepository) Add(ctx context.Context, ext sqlx.ExtContext, userID int, amount int64) error {
	entry, err := findProfit(ctx, ext, userID)
	if errors.Is(err, ErrNotFound) {
		return insertProfit(ctx, ext, userID, amount)
	}
	if err != nil {
		return err
	}
	return setProfit(ctx, ext, entry.ID, entry.Total+amount)
}

// Recompute sets the user's total to the sum of profit over their ads in
// completedStatusID and returns the new total
func (r *ProfitRepository) Recompute(ctx context.Context, ext sqlx.ExtContext, userID, completedStatusID int) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, ext, &total, `SELECT COALESCE(SUM(profit), 0) FROM ads_data
		WHERE user_id = ? AND ad_status_id = ? AND profit IS NOT NULL`, userID, completedStatusID)
	if err != nil {
		return 0, fmt.Errorf("sum profit of user %d: %w", userID, err)
	}

	entry, err := findProfit(ctx, ext, userID)
	if errors.Is(err, ErrNotFound) {
		return total, insertProfit(ctx, ext, userID, total)
	}
	if err != nil {
		return 0, err
	}
	return total, setProfit(ctx, ext, entry.ID, total)
}

func findProfit(ctx context.Context, q sqlx.QueryerContext, userID int) (*models.ProfitEntry, error) {
	var entry models.ProfitEntry
	err := sqlx.GetContext(ctx, q, &entry, "SELECT id, user_id, total, updated_at FROM profit WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profit of user %d: %w", userID, err)
	}
	return &entry, nil
}

func insertProfit(ctx context.Context, e sqlx.ExecerContext, userID int, total int64) error {
	_, err := e.ExecContext(ctx, "INSERT INTO profit (user_id, total, updated_at) VALUES (?, ?, ?)",
		userID, total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert profit of user %d: %w", userID, err)
	}
	return nil
}

func setProfit(ctx context.Context, e sqlx.ExecerContext, id int, total int64) error {
	_, err := e.ExecContext(ctx, "UPDATE profit SET total = ?, updated_at = ? WHERE id = ?", total, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update profit %d: %w", id, err)
	}
	return nil
}
