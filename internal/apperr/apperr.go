package apperr

import "errors"

// Kind sentinels. The HTTP layer maps these to status codes; callers should
// match with errors.Is against the kind, not the specific error.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Error is a specific failure tagged with one of the kind sentinels.
type Error struct {
	kind error
	msg  string
}

func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// IsKind reports whether err carries one of the kind sentinels.
func IsKind(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInsufficientFunds} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

var (
	ErrQuoteNotFound    = New(ErrNotFound, "quote not found")
	ErrOfferNotFound    = New(ErrNotFound, "offer not found")
	ErrWalletNotFound   = New(ErrNotFound, "wallet not found")
	ErrPartnerNotFound  = New(ErrNotFound, "partner capability profile not found")
	ErrShipmentNotFound = New(ErrNotFound, "shipment not found")
	ErrNotQuoteLead     = New(ErrNotFound, "offer not found on this quote")

	ErrNotPartner  = New(ErrForbidden, "only logistics partners can perform this action")
	ErrNotTrader   = New(ErrForbidden, "only traders can perform this action")
	ErrNotAdmin    = New(ErrForbidden, "only administrators can perform this action")
	ErrNotOwner    = New(ErrForbidden, "caller does not own this resource")
	ErrNotEligible = New(ErrForbidden, "partner is not eligible for this quote")

	ErrQuoteClosed      = New(ErrConflict, "quote is no longer accepting offers")
	ErrQuoteExpired     = New(ErrConflict, "quote has expired")
	ErrDuplicateOffer   = New(ErrConflict, "partner already has an active offer on this quote")
	ErrOfferNotPending  = New(ErrConflict, "offer is not pending")
	ErrDailyLeadLimit   = New(ErrConflict, "daily lead limit reached for subscription tier")
	ErrShipmentFinished = New(ErrConflict, "shipment is already delivered or cancelled")

	ErrNoBalance   = New(ErrInsufficientFunds, "wallet balance must be greater than zero to submit offers")
	ErrLeadCostDue = New(ErrInsufficientFunds, "wallet balance does not cover the lead cost")
)
