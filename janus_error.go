package janusproxy

import (
	"errors"
	"fmt"
)

// Gateway error codes used in synthesized replies.
const (
	CodeUnauthorized    = 403
	CodeInvalidJSON     = 454
	CodeUnknown         = 490
	defaultErrorMessage = "Unknown error"
)

// Error is a failure reported to the client as a gateway error reply addressed to the
// transaction that caused it.
type Error struct {
	Code        int
	Reason      string
	Transaction string
	Err         error
}

func NewError(reason string, code int, transaction string) *Error {
	return &Error{
		Code:        code,
		Reason:      reason,
		Transaction: transaction,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("janus error %d: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reply renders the error as the gateway would.
func (e *Error) Reply() Message {
	reply := Message{
		"janus": KindError,
		"error": map[string]interface{}{
			"code":   e.Code,
			"reason": e.Reason,
		},
	}

	if e.Transaction != "" {
		reply["transaction"] = e.Transaction
	}

	return reply
}

// AsError maps any failure to a gateway error. An *Error in the chain is kept and gets
// transaction when it has none; anything else becomes CodeUnknown.
func AsError(err error, transaction string) *Error {
	if err == nil {
		return nil
	}

	var janusErr *Error
	if errors.As(err, &janusErr) {
		if janusErr.Transaction == "" {
			copied := *janusErr
			copied.Transaction = transaction
			return &copied
		}
		return janusErr
	}

	reason := err.Error()
	if reason == "" {
		reason = defaultErrorMessage
	}

	return &Error{
		Code:        CodeUnknown,
		Reason:      reason,
		Transaction: transaction,
		Err:         err,
	}
}
