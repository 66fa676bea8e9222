package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	ErrNotMember      = fmt.Errorf("user is not a member of the chat")
	ErrNotRecipient   = fmt.Errorf("user is not a recipient of the message")
	ErrNotAdmin       = fmt.Errorf("user is not an admin of the chat")
	ErrTransientStore = fmt.Errorf("durable store temporarily unavailable")

	ErrChatNotFound         = fmt.Errorf("chat not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrInvalidChat          = fmt.Errorf("invalid chat")

	ErrUnauthenticated = fmt.Errorf("missing or invalid token")
	ErrInvalidPayload  = fmt.Errorf("invalid payload")
	ErrUnknownEvent    = fmt.Errorf("unknown event type")
	ErrRateLimited     = fmt.Errorf("rate limit exceeded")
	ErrQueueFull       = fmt.Errorf("delivery queue full")
	ErrConnectionGone  = fmt.Errorf("connection closed")
	ErrPushGone        = fmt.Errorf("push subscription expired")
)

// Is forwards to the standard library so callers only import this package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library so callers only import this package.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Wrap attaches cause to a sentinel so callers can still match it with Is.
func Wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}
