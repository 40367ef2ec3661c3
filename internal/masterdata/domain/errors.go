package masterdata

import "errors"

var (
	ErrInvalidCustomer    = errors.New("masterdata: invalid customer")
	ErrDuplicateEmail     = errors.New("masterdata: email already registered")
	ErrDuplicateMeter     = errors.New("masterdata: meter number already registered")
	ErrCustomerNotFound   = errors.New("masterdata: customer not found")
	ErrMeterNotFound      = errors.New("masterdata: meter not found")
	ErrUnknownAccountType = errors.New("masterdata: unknown account type")
	ErrCustomerHasBills   = errors.New("masterdata: customer has bills or payments")
)
