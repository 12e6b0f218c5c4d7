// Error taxonomy shared by every gcloud service package.
//
// Google services report failures either as JSON error bodies (REST) or as
// gRPC status values. Both are folded into *Error so callers can branch on the
// kind of failure without caring which transport produced it. The canonical
// gRPC codes (https://github.com/grpc/grpc/blob/master/doc/statuscodes.md) are
// used as the common vocabulary.
package apierr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reasons reported by Google services when a caller must slow down.
const (
	ReasonRateLimitExceeded     = "rateLimitExceeded"
	ReasonUserRateLimitExceeded = "userRateLimitExceeded"
	ReasonBackendError          = "backendError"
)

// RateLimitReasons are retried by every service.
var RateLimitReasons = []string{ReasonRateLimitExceeded, ReasonUserRateLimitExceeded}

// Kinds usable with errors.Is against any error returned by a service client.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Error is a failure reported by a Google service.
type Error struct {
	// Op names the call that failed, e.g. "storage.buckets.get".
	Op string
	// Code is the HTTP status code, zero for errors that came over gRPC.
	Code int
	// Status is the canonical code of the failure.
	Status codes.Code
	// Reason is the machine readable reason, e.g. "rateLimitExceeded".
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels of this package.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == codes.NotFound
	case ErrAlreadyExists:
		return e.Status == codes.AlreadyExists
	case ErrRateLimited:
		return e.Status == codes.ResourceExhausted
	case ErrInvalidArgument:
		return e.Status == codes.InvalidArgument || e.Status == codes.FailedPrecondition || e.Status == codes.OutOfRange
	case ErrPermissionDenied:
		return e.Status == codes.PermissionDenied
	case ErrUnauthenticated:
		return e.Status == codes.Unauthenticated
	}
	return false
}

// FromAPI classifies err as returned by a generated transport. Errors that are
// neither Google JSON errors nor gRPC status errors are wrapped with op and
// otherwise left alone.
func FromAPI(op string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := classify(err); ok {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return errors.Wrap(err, op)
}

// reasonStatus maps the reasons found in service error items, e.g. the
// errorResult of a BigQuery job, to canonical codes.
var reasonStatus = map[string]codes.Code{
	"notFound":                  codes.NotFound,
	"duplicate":                 codes.AlreadyExists,
	"conflict":                  codes.AlreadyExists,
	"invalid":                   codes.InvalidArgument,
	"invalidQuery":              codes.InvalidArgument,
	"required":                  codes.InvalidArgument,
	"responseTooLarge":          codes.InvalidArgument,
	"accessDenied":              codes.PermissionDenied,
	"forbidden":                 codes.PermissionDenied,
	"quotaExceeded":             codes.ResourceExhausted,
	ReasonRateLimitExceeded:     codes.ResourceExhausted,
	ReasonUserRateLimitExceeded: codes.ResourceExhausted,
	ReasonBackendError:          codes.Unavailable,
	"internalError":             codes.Internal,
	"stopped":                   codes.Aborted,
	"timeout":                   codes.DeadlineExceeded,
}

// FromReason builds an error from a reason string reported inside a
// successful response.
func FromReason(op, reason, message string) *Error {
	st, ok := reasonStatus[reason]
	if !ok {
		st = codes.Unknown
	}
	return &Error{Op: op, Status: st, Reason: reason, Message: message}
}

// Invalidf reports a request rejected before it was sent.
func Invalidf(op, format string, args ...interface{}) error {
	return &Error{Op: op, Status: codes.InvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// As returns the classified form of err, if it has one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	return classify(err)
}

func classify(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fromGoogleAPI(gerr), true
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return fromStatus(s, err), true
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: codes.DeadlineExceeded, Message: err.Error(), Err: err}, true
	case errors.Is(err, context.Canceled):
		return &Error{Status: codes.Canceled, Message: err.Error(), Err: err}, true
	}
	return nil, false
}

func fromGoogleAPI(gerr *googleapi.Error) *Error {
	e := &Error{
		Code:    gerr.Code,
		Status:  statusFromHTTP(gerr.Code),
		Message: gerr.Message,
		Err:     gerr,
	}
	for _, item := range gerr.Errors {
		if e.Reason == "" {
			e.Reason = item.Reason
		}
		// 403 is also used for quota failures
		if isRateLimitReason(item.Reason) {
			e.Reason = item.Reason
			e.Status = codes.ResourceExhausted
			break
		}
	}
	if e.Message == "" && len(gerr.Errors) > 0 {
		e.Message = gerr.Errors[0].Message
	}
	return e
}

func fromStatus(s *status.Status, err error) *Error {
	e := &Error{
		Status:  s.Code(),
		Message: s.Message(),
		Err:     err,
	}
	for _, d := range s.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			e.Reason = info.GetReason()
			break
		}
	}
	return e
}

func isRateLimitReason(reason string) bool {
	for _, r := range RateLimitReasons {
		if r == reason {
			return true
		}
	}
	return false
}

func statusFromHTTP(code int) codes.Code {
	switch code {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case http.StatusRequestedRangeNotSatisfiable:
		return codes.OutOfRange
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	if code >= 500 {
		return codes.Internal
	}
	return codes.Unknown
}

func IsNotFound(err error) bool {
	return is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return is(err, ErrAlreadyExists)
}

func IsRateLimited(err error) bool {
	return is(err, ErrRateLimited)
}

func IsInvalid(err error) bool {
	return is(err, ErrInvalidArgument)
}

func IsPermissionDenied(err error) bool {
	return is(err, ErrPermissionDenied)
}

func IsUnauthenticated(err error) bool {
	return is(err, ErrUnauthenticated)
}

func is(err error, kind error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kind) {
		return true
	}
	// transports hand back unclassified errors
	if e, ok := classify(err); ok {
		return e.Is(kind)
	}
	return false
}

// RateLimitedBy reports rate-limit signals plus any of the extra reasons.
// Services that treat other reasons as transient add them here.
func RateLimitedBy(extra ...string) func(error) bool {
	return func(err error) bool {
		e, ok := As(err)
		if !ok {
			return false
		}
		if e.Status == codes.ResourceExhausted || e.Code == http.StatusTooManyRequests {
			return true
		}
		for _, reason := range extra {
			if e.Reason == reason {
				return true
			}
		}
		return false
	}
}
