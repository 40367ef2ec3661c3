package masterdata

import (
	"strings"

	"github.com/samber/lo"
)

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	// Search is a case-insensitive substring matched against name, email,
	// phone and region.
	Search      string
	AccountType string
	Status      string
	IDs         []int64
	Limit       int
	Offset      int
}

// Matches reports whether c passes the filter.
func (f CustomerFilter) Matches(c Customer) bool {
	if len(f.IDs) > 0 && !lo.Contains(f.IDs, c.ID) {
		return false
	}
	if f.AccountType != "" && !strings.EqualFold(c.AccountType, f.AccountType) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(c.AccountStatus, f.Status) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return lo.SomeBy([]string{c.Name, c.Email, c.Phone, c.Address.Region}, func(field string) bool {
		return strings.Contains(strings.ToLower(field), term)
	})
}

// Apply filters and pages customers, keeping input order.
func (f CustomerFilter) Apply(customers []Customer) []Customer {
	matched := lo.Filter(customers, func(c Customer, _ int) bool { return f.Matches(c) })
	if f.Offset > 0 {
		matched = lo.Drop(matched, f.Offset)
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}
