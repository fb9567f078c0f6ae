package model

import "github.com/zeebo/errs"

// Error classes shared by every layer. api.WriteError maps them to HTTP statuses.
var (
	ErrValidation  = errs.Class("validation")
	ErrNotFound    = errs.Class("not found")
	ErrConflict    = errs.Class("conflict")
	ErrStorage     = errs.Class("storage")
	ErrTransaction = errs.Class("transaction")
	ErrIntegrity   = errs.Class("integrity violation")
)

// Classified reports whether err belongs to one of the classes above.
func Classified(err error) bool {
	return ErrValidation.Has(err) || ErrNotFound.Has(err) || ErrConflict.Has(err) ||
		ErrStorage.Has(err) || ErrTransaction.Has(err) || ErrIntegrity.Has(err)
}
