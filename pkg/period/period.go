// Package period models pay-period keys: a (month-name, year-string)
// pair on the wire, an ordered (month, year) value in the domain.
package period

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies one calendar month.
type Period struct {
	Month time.Month
	Year  int
}

// New builds a period, normalizing month overflow (month 13 of 2026
// becomes January 2027).
func New(month time.Month, year int) Period {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Month: t.Month(), Year: t.Year()}
}

// Parse accepts a month name ("January", case-insensitive) or a numeric
// month together with a year string.
func Parse(monthName, yearStr string) (Period, error) {
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil || year < 1900 || year > 2200 {
		return Period{}, fmt.Errorf("invalid year %q", yearStr)
	}

	name := strings.TrimSpace(monthName)
	if n, err := strconv.Atoi(name); err == nil {
		if n < 1 || n > 12 {
			return Period{}, fmt.Errorf("invalid month %q", monthName)
		}
		return Period{Month: time.Month(n), Year: year}, nil
	}

	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), name) {
			return Period{Month: m, Year: year}, nil
		}
	}
	return Period{}, fmt.Errorf("invalid month %q", monthName)
}

// Index is a totally ordered key: consecutive months differ by one.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// After reports whether p follows other.
func (p Period) After(other Period) bool {
	return p.Index() > other.Index()
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	return New(p.Month+1, p.Year)
}

// AddMonths returns the period n calendar months later.
func (p Period) AddMonths(n int) Period {
	return New(p.Month+time.Month(n), p.Year)
}

// IsZero reports whether p is the zero value.
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

type wire struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

// MarshalJSON renders the (month-name, year-string) wire shape.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{Month: p.Month.String(), Year: strconv.Itoa(p.Year)})
}

// UnmarshalJSON parses the wire shape, accepting numeric months too.
func (p *Period) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.Month, w.Year)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
