package soap

import (
	"errors"
	"fmt"
)

// ErrElementNotFound is returned when a response document ends, or stops
// being well formed, before the expected result element starts.
var ErrElementNotFound = errors.New("soap response element not found")

// Fault is a SOAP 1.1 fault body.
type Fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Actor  string `xml:"faultactor"`
	Detail string `xml:"detail"`
}

// FaultError is returned when the server answers with a SOAP fault.
type FaultError struct {
	Fault Fault
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("soap fault %s: %s", e.Fault.Code, e.Fault.String)
}

// StatusError is returned for non-200 responses that carry no SOAP fault.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected http status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected http status %d: %s", e.StatusCode, e.Body)
}

// DecodeError is returned when the result element was found but could not be
// decoded into the destination value.
type DecodeError struct {
	Element string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Element, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PayloadError is returned by Stream when the payload reader failed or held
// a different number of bytes than declared.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("failed to read stream payload: %v", e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }
