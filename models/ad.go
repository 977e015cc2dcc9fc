package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Ad represents a row of ads_data
type Ad struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"user_id" db:"user_id"`
	Title       string          `json:"title" db:"ad_title"`
	Description string          `json:"description" db:"ad_description"`
	PostDate    time.Time       `json:"post_date" db:"ad_post_date"`
	CityID      int             `json:"city_id" db:"city_id"`
	CategoryID  int             `json:"category_id" db:"category"`
	TypeID      int             `json:"type_id" db:"ad_type_id"`
	StatusID    int             `json:"status_id" db:"ad_status_id"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Profit      *int64          `json:"profit,omitempty" db:"profit"`
	ImagePath   *string         `json:"image_path,omitempty" db:"ad_image_path"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// HasImage reports whether a stored image path is set
func (a *Ad) HasImage() bool {
	return a.ImagePath != nil && *a.ImagePath != ""
}

// AdForm carries the editable fields of an ad as entered by the user.
// Price and Profit stay textual until validation parses them.
type AdForm struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	PostDate          *Date     `json:"post_date"`
	CityID            int       `json:"city_id"`
	CategoryID        int       `json:"category_id"`
	TypeID            int       `json:"type_id"`
	StatusID          int       `json:"status_id"`
	Price             FormValue `json:"price"`
	Profit            FormValue `json:"profit"`
	ConfirmZeroProfit bool      `json:"confirm_zero_profit,omitempty"`
	ImageSource       string    `json:"image_source,omitempty"` // path of a file to copy into the image folder
	RemoveImage       bool      `json:"remove_image,omitempty"`
}

// FormFromAd fills a form with the current values of an ad
func FormFromAd(ad *Ad) AdForm {
	d := NewDate(ad.PostDate)
	form := AdForm{
		Title:       ad.Title,
		Description: ad.Description,
		PostDate:    &d,
		CityID:      ad.CityID,
		CategoryID:  ad.CategoryID,
		TypeID:      ad.TypeID,
		StatusID:    ad.StatusID,
		Price:       FormValue(ad.Price.StringFixed(2)),
	}
	if ad.Profit != nil {
		form.Profit = FormValue(fmt.Sprintf("%d", *ad.Profit))
	}
	return form
}

// DeleteSummary describes an ad in a delete confirmation prompt
type DeleteSummary struct {
	ID       int             `json:"id"`
	Title    string          `json:"title"`
	PostDate Date            `json:"post_date"`
	Price    decimal.Decimal `json:"price"`
}

func (s DeleteSummary) String() string {
	return fmt.Sprintf("Title: %s\nDate: %s\nPrice: %s\n\nThis action cannot be undone.",
		s.Title, s.PostDate.Time().Format("02.01.2006"), s.Price.StringFixed(2))
}

// Date is a calendar date without time of day
type Date struct {
	t time.Time
}

// NewDate truncates t to its calendar date in UTC
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a date in DateLayout or RFC 3339
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t), nil
}

func (d Date) Time() time.Time { return d.t }

func (d Date) After(o Date) bool { return d.t.After(o.t) }

func (d Date) String() string { return d.t.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FormValue is a numeric form field kept as entered.
// JSON numbers and strings are both accepted.
type FormValue string

func (v FormValue) String() string { return strings.TrimSpace(string(v)) }

func (v FormValue) Empty() bool { return v.String() == "" }

func (v *FormValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("form value must be a number or string: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}
