package conversion

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindNoFileUploaded    Kind = "NoFileUploaded"
	KindUnsupportedFormat Kind = "UnsupportedFormat"
	KindConversionFailure Kind = "ConversionFailure"
	KindIOFailure         Kind = "IOFailure"
)

// Error carries a machine readable kind plus the message shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoFileUploaded is returned when the multipart body has no file field.
var ErrNoFileUploaded = &Error{Kind: KindNoFileUploaded, Message: "No file uploaded"}

func unsupportedFormat(format string) *Error {
	return &Error{
		Kind:    KindUnsupportedFormat,
		Message: fmt.Sprintf("Conversion to %s is not supported", format),
	}
}

func conversionFailure(err error) *Error {
	return &Error{Kind: KindConversionFailure, Message: err.Error(), Err: err}
}

func ioFailure(message string, err error) *Error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{Kind: KindIOFailure, Message: msg, Err: err}
}

// KindOf returns the kind of a conversion error; anything else is an IO failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIOFailure
}

// MessageOf returns the client facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
