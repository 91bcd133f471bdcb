package exception

import "errors"

var (
	ErrFeedUnavailable = errors.New("feed: source unavailable")

	ErrBookInvalidDepth         = errors.New("book: depth must be positive")
	ErrBookInvalidTradeCapacity = errors.New("book: trade capacity must be positive")
)

var (
	ErrConfigInvalid = errors.New("config: invalid value")
)
