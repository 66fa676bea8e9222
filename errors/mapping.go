package errors

import "net/http"

// Code is the stable, client-visible name of an error.
type Code string

const (
	CodeNotMember    Code = "not_member"
	CodeNotRecipient Code = "not_recipient"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeInvalid      Code = "invalid_payload"
	CodeUnauth       Code = "unauthenticated"
	CodeRateLimited  Code = "rate_limited"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// ToCode classifies err into the taxonomy exposed to clients.
// Transient failures only reach this point once retries are exhausted.
func ToCode(err error) Code {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrNotMember):
		return CodeNotMember
	case Is(err, ErrNotRecipient):
		return CodeNotRecipient
	case Is(err, ErrNotAdmin):
		return CodeForbidden
	case Is(err, ErrChatNotFound), Is(err, ErrMessageNotFound),
		Is(err, ErrNotificationNotFound), Is(err, ErrUserNotFound):
		return CodeNotFound
	case Is(err, ErrInvalidPayload), Is(err, ErrUnknownEvent), Is(err, ErrInvalidChat):
		return CodeInvalid
	case Is(err, ErrUnauthenticated):
		return CodeUnauth
	case Is(err, ErrRateLimited):
		return CodeRateLimited
	case Is(err, ErrTransientStore), Is(err, ErrQueueFull):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// MapToHTTPStatus converts a domain error into the REST status code.
func MapToHTTPStatus(err error) int {
	switch ToCode(err) {
	case "":
		return http.StatusOK
	case CodeNotMember, CodeNotRecipient, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeUnauth:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
