package exception

import "errors"

// Submission validation errors. Surfaced to the caller, never retried.
var (
	ErrOrderInvalidAmount   = errors.New("order: amount must be positive")
	ErrOrderInvalidPrice    = errors.New("order: price must be positive")
	ErrOrderMissingLimit    = errors.New("order: limit order requires limit price")
	ErrOrderMissingStop     = errors.New("order: stop order requires stop price")
	ErrOrderUnsupportedType = errors.New("order: unsupported type")
	ErrOrderUnknownSide     = errors.New("order: unknown side")
	ErrOrderUnknownSymbol   = errors.New("order: unknown symbol")
)

// Lifecycle errors. Losing the cancel/fill race is an expected outcome.
var (
	ErrOrderNotFound       = errors.New("order: not found")
	ErrOrderNotCancellable = errors.New("order: not cancellable")
)

// Policy errors. The caller's tier rejected the submission.
var (
	ErrPolicyOrderTypeNotAllowed = errors.New("policy: order type not allowed for tier")
	ErrPolicyAmountExceedsLimit  = errors.New("policy: amount exceeds tier limit")
	ErrPolicyLeverageExceedsMax  = errors.New("policy: leverage exceeds tier maximum")
)
