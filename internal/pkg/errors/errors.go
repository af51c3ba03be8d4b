package errors

import "errors"

var (
	ErrStorage            = errors.New("storage error")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrQuotaExceeded      = errors.New("daily free quota exceeded")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrPaymentNotPaid     = errors.New("payment not completed")
	ErrPaymentMismatch    = errors.New("payment does not belong to this identity")
	ErrReadingFailed      = errors.New("reading generation failed")
)

type Error struct {
	Err     error
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Code:    "INTERNAL_ERROR",
	}
}
