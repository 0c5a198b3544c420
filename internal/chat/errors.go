package chat

import "errors"

// Sentinel errors for the outcomes a caller is expected to branch on.
// Anything else returned by this package is a persistence failure
// wrapping the storage error; callers surface those as a generic
// retry-later message.
var (
	// ErrNotFound: the target client, manager or chat has no row.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyTaken: the chat is already bound to another manager.
	ErrAlreadyTaken = errors.New("chat already taken by another manager")
	// ErrNoActiveChat: the operation requires an active chat and none exists.
	ErrNoActiveChat = errors.New("no active chat")
	// ErrNoManagers: admission refused, no manager is available.
	ErrNoManagers = errors.New("no managers available")
	// ErrInvalidRating: rating outside the 1-5 range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNoRating: a comment was submitted before any numeric rating.
	ErrNoRating = errors.New("no rating saved yet")
	// ErrDelivery: the message was persisted but could not be delivered.
	ErrDelivery = errors.New("message stored but not delivered")
)
