package ads

import (
	"strconv"
	"strings"
	"time"

	"ads-manager/models"

	"github.com/shopspring/decimal"
)

// fields holds the parsed values of a form that passed validation
type fields struct {
	title       string
	description string
	postDate    models.Date
	price       decimal.Decimal
	profit      *int64
}

// Validate checks the form in a fixed order and returns the first failure.
// completedStatusID decides whether profit is required.
func Validate(form models.AdForm, today models.Date, completedStatusID int) error {
	_, err := validate(form, today, completedStatusID)
	return err
}

func validate(form models.AdForm, today models.Date, completedStatusID int) (fields, error) {
	var f fields

	f.title = strings.TrimSpace(form.Title)
	if f.title == "" {
		return f, invalid("title", "Title is required.")
	}
	f.description = strings.TrimSpace(form.Description)

	if form.PostDate == nil || form.PostDate.Time().IsZero() {
		return f, invalid("post_date", "Post date is required.")
	}
	if form.PostDate.After(today) {
		return f, invalid("post_date", "Post date cannot be in the future.")
	}
	f.postDate = *form.PostDate

	switch {
	case form.CityID <= 0:
		return f, invalid("city_id", "City is required.")
	case form.CategoryID <= 0:
		return f, invalid("category_id", "Category is required.")
	case form.TypeID <= 0:
		return f, invalid("type_id", "Ad type is required.")
	case form.StatusID <= 0:
		return f, invalid("status_id", "Status is required.")
	}

	price, err := ParsePrice(form.Price.String())
	if err != nil || price.IsNegative() {
		return f, invalid("price", "Price must be a non-negative number.")
	}
	f.price = price

	if form.StatusID != completedStatusID {
		return f, nil
	}

	if form.Profit.Empty() {
		return f, invalid("profit", "A completed ad needs the amount received.")
	}
	profit, err := strconv.ParseInt(form.Profit.String(), 10, 64)
	if err != nil || profit < 0 {
		return f, invalid("profit", "Profit must be a non-negative whole number.")
	}
	if profit == 0 && !form.ConfirmZeroProfit {
		return f, &ValidationError{
			Field:   "profit",
			Message: "Profit is zero. Confirm to save anyway.",
			Err:     ErrZeroProfitUnconfirmed,
		}
	}
	f.profit = &profit
	return f, nil
}

// ParsePrice reads a decimal price, accepting a comma as decimal separator
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}

// Today returns the calendar date of now
func Today(now time.Time) models.Date {
	return models.NewDate(now)
}
