package usecase

import (
	"errors"

	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// ErrorKind buckets a failure for user-facing messaging.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTransport ErrorKind = "transport"
	KindRejected  ErrorKind = "rejected"
	KindSession   ErrorKind = "session"
)

func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotAuthenticated), crm.IsUnauthorized(err):
		return KindSession
	case crm.IsTransport(err):
		return KindTransport
	default:
		return KindRejected
	}
}

// Message turns an error into text safe to show to the user.
func Message(err error) string {
	var apiErr *crm.APIError
	switch Classify(err) {
	case KindNone:
		return ""
	case KindSession:
		return "Your session has expired. Please sign in again."
	case KindTransport:
		return "The CRM service could not be reached."
	}
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return "The request failed."
	}
	return err.Error()
}
