package apierror

import (
	"encoding/json"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
)

// Envelope is the JSON failure envelope returned to clients.
type Envelope struct {
	Success bool          `json:"success"`
	Error   EnvelopeError `json:"error"`
}

// EnvelopeError is the error body inside the envelope.
type EnvelopeError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Stack   string                 `json:"stack,omitempty"`
}

// Write normalizes err and writes exactly one failure envelope with the
// kind's status code. In production, internal messages stay generic and
// stack traces are omitted; outside production the stack of unexpected
// errors is included for debuggability.
func Write(w http.ResponseWriter, err error, production bool) {
	e := FromError(err)

	body := EnvelopeError{
		Code:    e.Code(),
		Message: e.Message,
		Details: e.Details,
	}

	if !e.Operational() && !production {
		if cause := e.Unwrap(); cause != nil {
			body.Message = cause.Error()
		}
		body.Stack = string(debug.Stack())
	}

	w.Header().Set("Content-Type", "application/json")
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(e)))
	}
	w.WriteHeader(e.Status())

	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: body})
}

// retryAfterSeconds converts the retry-after duration to whole seconds,
// rounding up so clients never retry early.
func retryAfterSeconds(e *Error) int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}
