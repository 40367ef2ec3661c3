package masterdata

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	rating "waterbill/internal/rating/domain"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusClosed    = "closed"

	CycleMonthly   = "monthly"
	CycleQuarterly = "quarterly"
)

// Address is a billing address. Region selects regional rate tiers.
type Address struct {
	ID         int64  `json:"address_id"`
	Line       string `json:"address_line"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Region     string `json:"region"`
}

// Customer is a billed account holder.
type Customer struct {
	ID            int64     `json:"customer_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       Address   `json:"billing_address"`
	BillingCycle  string    `json:"billing_cycle"`
	AccountType   string    `json:"account_type"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Classification maps the account type onto a rate classification.
func (c Customer) Classification() rating.Classification {
	return rating.NormalizeClassification(c.AccountType)
}

// Region returns the billing address region.
func (c Customer) Region() string { return c.Address.Region }

// Billable reports whether bills should be generated for the customer.
func (c Customer) Billable() bool { return c.AccountStatus != StatusClosed }

// Normalize trims fields and lower-cases email, account type and status.
func (c *Customer) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = NormalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.BillingCycle = strings.ToLower(strings.TrimSpace(c.BillingCycle))
	c.AccountType = strings.ToLower(strings.TrimSpace(c.AccountType))
	c.AccountStatus = strings.ToLower(strings.TrimSpace(c.AccountStatus))
	c.Address.Region = strings.TrimSpace(c.Address.Region)
	if c.BillingCycle == "" {
		c.BillingCycle = CycleMonthly
	}
	if c.AccountStatus == "" {
		c.AccountStatus = StatusActive
	}
}

// Validate checks customer invariants.
func (c Customer) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidCustomer)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalidCustomer, c.Email)
	}
	if c.AccountType == "" {
		return fmt.Errorf("%w: account type is required", ErrInvalidCustomer)
	}
	switch c.AccountStatus {
	case StatusActive, StatusSuspended, StatusClosed:
	default:
		return fmt.Errorf("%w: account status %q", ErrInvalidCustomer, c.AccountStatus)
	}
	switch c.BillingCycle {
	case CycleMonthly, CycleQuarterly:
	default:
		return fmt.Errorf("%w: billing cycle %q", ErrInvalidCustomer, c.BillingCycle)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Meter is a water meter installed for a customer.
type Meter struct {
	ID               int64     `json:"meter_id"`
	CustomerID       int64     `json:"customer_id"`
	MeterNumber      string    `json:"meter_number"`
	InstallationDate time.Time `json:"installation_date"`
}

// DefaultMeterNumber is assigned when a customer is created without one.
func DefaultMeterNumber(customerID int64) string {
	return fmt.Sprintf("M%d", customerID)
}

// AccountType is a lookup row for customer classification.
type AccountType struct {
	ID   int64  `json:"account_type_id"`
	Name string `json:"name"`
}

// AccountStatus is a lookup row for account lifecycle.
type AccountStatus struct {
	ID   int64  `json:"account_status_id"`
	Name string `json:"name"`
}
