package usecase

import "fmt"

type ErrorCode string

const (
	ErrorNormalization ErrorCode = "NORMALIZATION_ERROR"
	ErrorPublish       ErrorCode = "PUBLISH_ERROR"
	ErrorExtraction    ErrorCode = "EXTRACTION_ERROR"
	ErrorSynthesis     ErrorCode = "SYNTHESIS_ERROR"
	ErrorTagging       ErrorCode = "TAGGING_ERROR"
	ErrorDelivery      ErrorCode = "DELIVERY_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
