// Package errs defines the error taxonomy shared by providers, savers and
// the task runner. Kinds classify failures for retry and reporting decisions;
// the concrete messages stay close to where they happened.
package errs

import "fmt"

type Kind int

const (
	KindUnknown Kind = iota
	KindDisallowed      // robots.txt forbids the URL
	KindUnreachable     // DNS, firewall or site-level timeout
	KindTransient       // 5xx and transient socket errors, retried
	KindPermanent       // 4xx, malformed DOM, zero images after filtering
	KindDriverMissing   // headless driver or ffmpeg not installed
	KindCorrupt         // archive or metadata file unreadable
	KindConflict        // library managed by a different saver
	KindCancelled       // user-initiated
)

func (k Kind) String() string {
	switch k {
	case KindDisallowed:
		return "disallowed"
	case KindUnreachable:
		return "unreachable"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindDriverMissing:
		return "driver missing"
	case KindCorrupt:
		return "corrupt"
	case KindConflict:
		return "conflict"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Error carries a kind alongside the usual message/cause pair.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf reports the kind of err, walking the wrap chain. Errors that never
// got classified come back as KindUnknown.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

// Retryable reports whether the failure is worth another attempt.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
