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

// AdRepository stores ads_data rows
type AdRepository struct {
	db *sqlx.DB
}

func NewAdRepository(db *sqlx.DB) *AdRepository {
	return &AdRepository{db: db}
}

const adColumns = `id, user_id, ad_title, ad_description, ad_post_date, city_id, category,
	ad_type_id, ad_status_id, price, profit, ad_image_path, created_at, updated_at`

func (r *AdRepository) FindByID(ctx context.Context, id int) (*models.Ad, error) {
	var ad models.Ad
	err := r.db.GetContext(ctx, &ad, "SELECT "+adColumns+" FROM ads_data WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ad %d: %w", id, err)
	}
	return &ad, nil
}

// Save inserts the ad when its ID is zero and updates it otherwise.
// after runs in the same transaction; an error from it rolls the write back.
func (r *AdRepository) Save(ctx context.Context, ad *models.Ad, after TxFunc) error {
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if ad.ID == 0 {
			result, err := tx.ExecContext(ctx, `INSERT INTO ads_data (user_id, ad_title, ad_description, ad_post_date,
				city_id, category, ad_type_id, ad_status_id, price, profit, ad_image_path, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				ad.UserID, ad.Title, ad.Description, ad.PostDate, ad.CityID, ad.CategoryID, ad.TypeID,
				ad.StatusID, ad.Price, ad.Profit, ad.ImagePath, now, now)
			if err != nil {
				return fmt.Errorf("insert ad: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert ad: %w", err)
			}
			ad.ID = int(id)
			ad.CreatedAt = now
		} else {
			result, err := tx.ExecContext(ctx, `UPDATE ads_data SET ad_title = ?, ad_description = ?, ad_post_date = ?,
				city_id = ?, category = ?, ad_type_id = ?, ad_status_id = ?, price = ?, profit = ?,
				ad_image_path = ?, updated_at = ? WHERE id = ?`,
				ad.Title, ad.Description, ad.PostDate, ad.CityID, ad.CategoryID, ad.TypeID, ad.StatusID,
				ad.Price, ad.Profit, ad.ImagePath, now, ad.ID)
			if err != nil {
				return fmt.Errorf("update ad %d: %w", ad.ID, err)
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return ErrNotFound
			}
		}
		ad.UpdatedAt = now

		if after != nil {
			return after(ctx, tx)
		}
		return nil
	})
}

// UpdateImagePath replaces only the stored image path of an ad
func (r *AdRepository) UpdateImagePath(ctx context.Context, id int, path *string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE ads_data SET ad_image_path = ?, updated_at = ? WHERE id = ?",
		path, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update image of ad %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the ad; after runs in the same transaction
func (r *AdRepository) Delete(ctx context.Context, id int, after TxFunc) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM ads_data WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete ad %d: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if after != nil {
			return after(ctx, tx)
		}
		return nil
	})
}

// RowQuery scopes ListRows. Zero values mean no restriction.
type RowQuery struct {
	OwnerID  int
	StatusID int
}

// ListRows returns ads joined with their reference data, newest first
func (r *AdRepository) ListRows(ctx context.Context, q RowQuery) ([]models.AdRow, error) {
	rows := []models.AdRow{}
	err := r.db.SelectContext(ctx, &rows, `SELECT a.id, a.user_id, COALESCE(u.user_login, '') AS owner_login,
			a.ad_title, a.ad_description, a.ad_post_date,
			a.city_id, COALESCE(c.city, '') AS city_name,
			a.category, COALESCE(cat.name, '') AS category_name,
			a.ad_type_id, COALESCE(t.type, '') AS type_name,
			a.ad_status_id, COALESCE(s.status, '') AS status_name,
			a.price, a.profit, a.ad_image_path
		FROM ads_data a
		LEFT JOIN user u ON u.id = a.user_id
		LEFT JOIN city c ON c.id = a.city_id
		LEFT JOIN category cat ON cat.id = a.category
		LEFT JOIN type t ON t.id = a.ad_type_id
		LEFT JOIN status s ON s.id = a.ad_status_id
		WHERE (? = 0 OR a.user_id = ?) AND (? = 0 OR a.ad_status_id = ?)
		ORDER BY a.ad_post_date DESC, a.id DESC`,
		q.OwnerID, q.OwnerID, q.StatusID, q.StatusID)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	return rows, nil
}
