package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfitEntry is the per-user profit ledger row
type ProfitEntry struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Total     int64     `json:"total" db:"total"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AdRow is an ad joined with its reference data for listing screens
type AdRow struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"user_id" db:"user_id"`
	OwnerLogin  string          `json:"owner_login" db:"owner_login"`
	Title       string          `json:"title" db:"ad_title"`
	Description string          `json:"description" db:"ad_description"`
	PostDate    time.Time       `json:"post_date" db:"ad_post_date"`
	CityID      int             `json:"city_id" db:"city_id"`
	City        string          `json:"city" db:"city_name"`
	CategoryID  int             `json:"category_id" db:"category"`
	Category    string          `json:"category" db:"category_name"`
	TypeID      int             `json:"type_id" db:"ad_type_id"`
	Type        string          `json:"type" db:"type_name"`
	StatusID    int             `json:"status_id" db:"ad_status_id"`
	Status      string          `json:"status" db:"status_name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Profit      *int64          `json:"profit,omitempty" db:"profit"`
	ImagePath   *string         `json:"image_path,omitempty" db:"ad_image_path"`
	HasImage    bool            `json:"has_image" db:"-"`
	StatusColor string          `json:"status_color" db:"-"`
}

// CompletedRow is a completed ad with the amount it contributed
type CompletedRow struct {
	AdRow
	ProfitAmount decimal.Decimal `json:"profit_amount"`
}

// CompletedSummary backs the completed-ads screen
type CompletedSummary struct {
	Ads         []CompletedRow `json:"ads"`
	Count       int            `json:"count"`
	TotalProfit int64          `json:"total_profit"`
	LedgerTotal int64          `json:"ledger_total"`
}
