/*

Error taxonomy for the vault engine. Category sentinels are joined with the
specific sentinel via errors.Join so callers can match either level with
errors.Is. Policy and authorization failures are rejected before any state
mutation or external call; external-call failures abort the whole operation
with pre-call state restored.

*/

package types

import "errors"

// Category sentinels.
var (
	ErrPolicyViolation      = errors.New("policy violation")
	ErrAuthorizationFailure = errors.New("authorization failure")
	ErrExternalCallFailure  = errors.New("external call failure")
)

// Policy violations, recoverable by the caller retrying with valid input.
var (
	ErrBelowMinimum       = errors.New("amount is below the minimum deposit")
	ErrInsufficientShares = errors.New("shares exceed caller balance")
	ErrExceedsPosition    = errors.New("amount exceeds position balance")
	ErrSlippageCeiling    = errors.New("slippage exceeds the hard ceiling")
	ErrPoolTypeDisabled   = errors.New("pool type mode does not permit this operation")
	ErrAmountInvalid      = errors.New("amount is invalid")
)

// Authorization failures.
var (
	ErrUnauthorized    = errors.New("caller is not authorized for this operation")
	ErrEmergencyActive = errors.New("vault is in emergency mode")
	ErrEmergencyOnly   = errors.New("operation requires emergency mode")
)

// External-call failures.
var (
	ErrGatewayCall = errors.New("asset transfer gateway call failed")
	ErrVenueCall   = errors.New("exchange venue call failed")
)

// PolicyViolation joins err with the policy-violation category.
func PolicyViolation(err error) error {
	return errors.Join(ErrPolicyViolation, err)
}

// AuthorizationFailure joins err with the authorization-failure category.
func AuthorizationFailure(err error) error {
	return errors.Join(ErrAuthorizationFailure, err)
}

// ExternalCallFailure joins err with the external-call-failure category.
func ExternalCallFailure(err error) error {
	return errors.Join(ErrExternalCallFailure, err)
}
