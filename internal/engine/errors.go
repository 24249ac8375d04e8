package engine

import (
	"errors"
	"fmt"
)

// ErrNoSink is returned by NewController when no sink is supplied.
var ErrNoSink = errors.New("engine: sink is required")

// DeliveryErrorCode categorizes delivery failures.
type DeliveryErrorCode string

const (
	// ErrCodeSinkFailed indicates the sink returned an error.
	ErrCodeSinkFailed DeliveryErrorCode = "SINK_FAILED"

	// ErrCodeCanceled indicates the sink failed because the request context
	// was canceled or its deadline passed.
	ErrCodeCanceled DeliveryErrorCode = "CANCELED"
)

// DeliveryError reports a batch that could not be handed to the sink.
// The controller has already returned to the disabled state when it is
// returned; the batch is lost.
type DeliveryError struct {
	Code      DeliveryErrorCode
	RequestID string
	Records   int
	Err       error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: delivering %d records for request %s: %v", e.Code, e.Records, e.RequestID, e.Err)
}

// Unwrap returns the sink's error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError checks if err is a DeliveryError with the given code.
func IsDeliveryError(err error, code DeliveryErrorCode) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
