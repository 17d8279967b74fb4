package httpwire

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Error kinds from §7 "Error handling design". These are sentinel errors
// callers can match against with errors.Is; the concrete error wraps one
// of these with context via github.com/pkg/errors, which also attaches a
// stack trace at the point of origin.
var (
	ErrFraming           = errors.New("httpwire: framing error")
	ErrValidation        = errors.New("httpwire: header validation error")
	ErrSize              = errors.New("httpwire: size limit exceeded")
	ErrExpectation       = errors.New("httpwire: expectation failed")
	ErrUpgrade           = errors.New("httpwire: upgrade failed")
	ErrPrematureClosure  = errors.New("httpwire: connection closed prematurely")
	ErrSubCodec          = errors.New("httpwire: content sub-codec error")
	ErrUnsupportedChunks = errors.New("httpwire: chunked transfer-encoding not supported")
)

// frameError wraps ErrFraming with a human-readable cause, mirroring the
// teacher's badStringError (types_transfer.go) but through pkg/errors so
// a stack trace is attached at the call site.
func frameError(cause string) error {
	return errors.Wrap(ErrFraming, cause)
}

// multiCause joins zero or more non-nil errors into one, using
// hashicorp/go-multierror so callers that need to report every failure
// detected before giving up (the decoder's header and trailer line
// validation) don't have to pick just the first.
func multiCause(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}
