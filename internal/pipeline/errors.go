package pipeline

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindValidation is a missing or malformed source URL
	KindValidation Kind = iota
	// KindUpstreamTransport is a fetch that failed at the transport level
	KindUpstreamTransport
	// KindUpstreamStatus is an upstream response outside 2xx
	KindUpstreamStatus
	// KindCodec is a decode or encode failure
	KindCodec
	// KindResourceExhausted is a fetch or codec pool closed for shutdown
	KindResourceExhausted
	// KindCancelled means the client went away mid-request
	KindCancelled
)

// StatusClientClosedRequest is the non-standard status logged when the
// client disconnects before a response is written.
const StatusClientClosedRequest = 499

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstreamTransport:
		return "upstream_transport"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindCodec:
		return "codec"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	// Message is safe to show to clients
	Message string
	// URL is the source URL, when known
	URL string
	// UpstreamStatus is set for KindUpstreamStatus
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstreamTransport, KindUpstreamStatus:
		return http.StatusBadGateway
	case KindCodec:
		return http.StatusInternalServerError
	case KindResourceExhausted:
		return http.StatusServiceUnavailable
	case KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
