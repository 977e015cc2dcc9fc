package listing

import (
	"fmt"
	"strings"

	"ads-manager/models"
)

// Filter narrows a loaded listing. Zero ids and empty text mean "all".
type Filter struct {
	Text       string `json:"text"`
	CityID     int    `json:"city_id"`
	CategoryID int    `json:"category_id"`
	TypeID     int    `json:"type_id"`
	StatusID   int    `json:"status_id"`
}

// Empty reports whether the filter lets every row through
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Text) == "" && f.CityID == 0 && f.CategoryID == 0 && f.TypeID == 0 && f.StatusID == 0
}

// Apply returns the rows matching every set criterion, preserving order.
// Text is a case-insensitive substring match over title and description.
func Apply(rows []models.AdRow, f Filter) []models.AdRow {
	term := strings.ToLower(strings.TrimSpace(f.Text))
	out := make([]models.AdRow, 0, len(rows))
	for _, row := range rows {
		if term != "" &&
			!strings.Contains(strings.ToLower(row.Title), term) &&
			!strings.Contains(strings.ToLower(row.Description), term) {
			continue
		}
		if f.CityID != 0 && row.CityID != f.CityID {
			continue
		}
		if f.CategoryID != 0 && row.CategoryID != f.CategoryID {
			continue
		}
		if f.TypeID != 0 && row.TypeID != f.TypeID {
			continue
		}
		if f.StatusID != 0 && row.StatusID != f.StatusID {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Describe renders the active criteria for a status line
func (f Filter) Describe(l *models.Lookups) string {
	var parts []string
	if text := strings.TrimSpace(f.Text); text != "" {
		parts = append(parts, fmt.Sprintf("search: %q", text))
	}
	if f.CityID != 0 {
		parts = append(parts, "city: "+l.CityName(f.CityID))
	}
	if f.CategoryID != 0 {
		parts = append(parts, "category: "+l.CategoryName(f.CategoryID))
	}
	if f.TypeID != 0 {
		parts = append(parts, "type: "+l.TypeName(f.TypeID))
	}
	if f.StatusID != 0 {
		parts = append(parts, "status: "+l.StatusName(f.StatusID))
	}
	if len(parts) == 0 {
		return "No filters applied"
	}
	return "Filters: " + strings.Join(parts, ", ")
}
