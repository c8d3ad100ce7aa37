// AngelaMos | 2026
// errors.go

package promo

import (
	"fmt"
)

// RejectionKind identifies why a redemption was refused. The string values
// are part of the API contract and must stay stable.
type RejectionKind string

const (
	RejectInvalidFormat   RejectionKind = "invalid_format"
	RejectNotFound        RejectionKind = "not_found"
	RejectExhausted       RejectionKind = "exhausted"
	RejectAlreadyRedeemed RejectionKind = "already_redeemed"
	RejectExpired         RejectionKind = "expired"
)

// PolicyError is a policy rejection, not a failure: the request was
// understood and refused. Handlers unwrap it with errors.As and surface the
// kind verbatim. Checks run in a fixed order, so a code that is both
// exhausted and expired always reports exhausted.
type PolicyError struct {
	Kind RejectionKind
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("promo code rejected: %s", e.Kind)
}

func reject(kind RejectionKind) *PolicyError {
	return &PolicyError{Kind: kind}
}
