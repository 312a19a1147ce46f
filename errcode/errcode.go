package errcode

// Code is a stable error identifier shared by logs, the bus and the
// firmware-update status characteristic.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Closed         Code = "closed"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPeriod  Code = "invalid_period"
	InvalidPayload Code = "invalid_payload"
	Timeout        Code = "timeout"

	// Firmware update.
	OutOfOrder     Code = "out_of_order"
	Overflow       Code = "overflow"
	Protocol       Code = "protocol"
	Storage        Code = "storage"
	DigestMismatch Code = "digest_mismatch"
	FailedState    Code = "failed_state"

	Error Code = "error" // generic fallback
)

// reasons is the wire order of update failure reasons. Append only.
var reasons = [...]Code{OK, Error, OutOfOrder, Overflow, Protocol, Storage, DigestMismatch, InvalidParams, FailedState}

// Index returns the one-byte wire index of c (Error when unknown).
func (c Code) Index() uint8 {
	for i, r := range reasons {
		if r == c {
			return uint8(i)
		}
	}
	return 1
}

// FromIndex is the inverse of Index.
func FromIndex(i uint8) Code {
	if int(i) < len(reasons) {
		return reasons[i]
	}
	return Error
}

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E; Wrap(c, op, nil) is valid and carries no cause.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
