package playback

import "errors"

// Typed errors raised by the access gate and credential issuer. Callers must
// be able to tell "not allowed" apart from "no such course" and from plain
// server trouble.
var (
	// ErrForbidden means the student is not enrolled (or payment is
	// pending). Never retried automatically; the user is sent to enroll.
	ErrForbidden = errors.New("playback: not enrolled")
	// ErrNotFound means the course or lesson does not exist.
	ErrNotFound = errors.New("playback: not found")
	// ErrConnectivity is a transient network failure; user-retryable.
	ErrConnectivity = errors.New("playback: connectivity failure")
	// ErrConfiguration means signing material is missing or unusable. This
	// is an operator problem, never surfaced to the student as such.
	ErrConfiguration = errors.New("playback: signing configuration invalid")
)

// ErrorKind is the small fixed set of user-facing failure categories. Raw
// transport errors are never shown to the student.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConnectivity  ErrorKind = "connectivity"
	KindUnknown       ErrorKind = "unknown"
)

// Classify maps any error onto a user-facing kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	default:
		// Configuration trouble is deliberately reported as unknown to the
		// viewer; operators see the real error in the logs.
		return KindUnknown
	}
}

// UserMessage returns the fixed message for a failure kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindAuthorization:
		return "You are not enrolled in this course."
	case KindNotFound:
		return "This lesson is no longer available."
	case KindConnectivity:
		return "Connection problem. Please try again."
	default:
		return "Something went wrong while loading the video."
	}
}
