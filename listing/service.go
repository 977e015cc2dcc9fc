// Package listing loads ads joined with their reference data and filters
// them in memory for the listing screens.
package listing

import (
	"context"
	"strings"

	"ads-manager/models"
	"ads-manager/repository"

	"github.com/shopspring/decimal"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// Status colours
const (
	ColorActive    = "#4CAF50"
	ColorCompleted = "#28A745"
	ColorOther     = "#9E9E9E"
)

// RowSource loads joined ad rows
type RowSource interface {
	ListRows(ctx context.Context, q repository.RowQuery) ([]models.AdRow, error)
}

// LedgerReader reads stored profit totals
type LedgerReader interface {
	Total(ctx context.Context, userID int) (int64, error)
}

// Scope selects which ads a screen shows
type Scope struct {
	OwnerID    int  // 0 for every user's ads
	ActiveOnly bool // only ads in the active status
}

type Config struct {
	ActiveStatusID    int
	CompletedStatusID int
}

type Service struct {
	rows   RowSource
	ledger LedgerReader
	cfg    Config
}

func NewService(rows RowSource, ledger LedgerReader, cfg Config) *Service {
	return &Service{rows: rows, ledger: ledger, cfg: cfg}
}

// Load returns the rows in scope, newest first, with display fields resolved
func (s *Service) Load(ctx context.Context, scope Scope) ([]models.AdRow, error) {
	q := repository.RowQuery{OwnerID: scope.OwnerID}
	if scope.ActiveOnly {
		q.StatusID = s.cfg.ActiveStatusID
	}
	rows, err := s.rows.ListRows(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		s.decorate(&rows[i])
	}
	logger.Debug("Ads loaded", zap.Int("owner_id", scope.OwnerID), zap.Int("count", len(rows)))
	return rows, nil
}

// Search loads the scope and applies the filter
func (s *Service) Search(ctx context.Context, scope Scope, f Filter) ([]models.AdRow, error) {
	rows, err := s.Load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Apply(rows, f), nil
}

// Completed summarises the owner's completed ads. A row without a profit
// shows its price as the amount; only recorded profit counts toward the total.
func (s *Service) Completed(ctx context.Context, ownerID int) (*models.CompletedSummary, error) {
	rows, err := s.rows.ListRows(ctx, repository.RowQuery{OwnerID: ownerID, StatusID: s.cfg.CompletedStatusID})
	if err != nil {
		return nil, err
	}

	summary := &models.CompletedSummary{Ads: make([]models.CompletedRow, 0, len(rows))}
	for _, row := range rows {
		s.decorate(&row)
		amount := row.Price
		if row.Profit != nil {
			amount = decimal.NewFromInt(*row.Profit)
			summary.TotalProfit += *row.Profit
		}
		summary.Ads = append(summary.Ads, models.CompletedRow{AdRow: row, ProfitAmount: amount})
	}
	summary.Count = len(summary.Ads)

	if s.ledger != nil {
		total, err := s.ledger.Total(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		summary.LedgerTotal = total
	}
	return summary, nil
}

func (s *Service) decorate(row *models.AdRow) {
	row.HasImage = row.ImagePath != nil && *row.ImagePath != ""
	row.StatusColor = s.color(row.StatusID, row.Status)
}

// color keys off the status name, falling back to the configured ids when
// the name is missing
func (s *Service) color(statusID int, name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "active":
		return ColorActive
	case "completed":
		return ColorCompleted
	case "":
		switch statusID {
		case s.cfg.ActiveStatusID:
			return ColorActive
		case s.cfg.CompletedStatusID:
			return ColorCompleted
		}
	}
	return ColorOther
}
