package models

import "time"

// Lookup is one entry of a reference table (city, category, type, status)
type Lookup struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Lookups is an immutable snapshot of all reference tables
type Lookups struct {
	Cities      []Lookup  `json:"cities"`
	Categories  []Lookup  `json:"categories"`
	Types       []Lookup  `json:"types"`
	Statuses    []Lookup  `json:"statuses"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Complete reports whether every list has been loaded
func (l *Lookups) Complete() bool {
	return l != nil && l.Cities != nil && l.Categories != nil && l.Types != nil && l.Statuses != nil
}

func (l *Lookups) CityName(id int) string     { return nameOf(l.Cities, id) }
func (l *Lookups) CategoryName(id int) string { return nameOf(l.Categories, id) }
func (l *Lookups) TypeName(id int) string     { return nameOf(l.Types, id) }
func (l *Lookups) StatusName(id int) string   { return nameOf(l.Statuses, id) }

func nameOf(items []Lookup, id int) string {
	for _, it := range items {
		if it.ID == id {
			return it.Name
		}
	}
	return ""
}
