package billing

import "errors"

var (
	// ErrInvalidPeriod is returned when a billing period is empty or inverted.
	ErrInvalidPeriod = errors.New("billing: invalid period")
	// ErrBillNotFound is returned when a bill is not found.
	ErrBillNotFound = errors.New("billing: bill not found")
	// ErrAlreadyBilled is returned when the customer already has a bill for the period.
	ErrAlreadyBilled = errors.New("billing: period already billed")
	// ErrUnpriced is returned when no rate tier covers the usage.
	ErrUnpriced = errors.New("billing: usage not covered by any rate tier")
	// ErrBillClosed is returned when a paid or void bill is changed.
	ErrBillClosed = errors.New("billing: bill is closed")
	// ErrInvalidPayment is returned for non-positive or excess payments.
	ErrInvalidPayment = errors.New("billing: invalid payment")
	// ErrCustomerMismatch is returned when a payment names another customer.
	ErrCustomerMismatch = errors.New("billing: bill belongs to another customer")
)
