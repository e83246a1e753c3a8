package service

import "errors"

var (
	// ErrTransactionNotApproved means a complete call arrived for a
	// transaction whose approval request has not finished approving.
	ErrTransactionNotApproved = errors.New("transaction is not approved")

	// ErrPropertyNotAvailable means the property's current state does not
	// allow the requested transaction, e.g. returning a property that was
	// never released.
	ErrPropertyNotAvailable = errors.New("property is not available for this transaction")
)
