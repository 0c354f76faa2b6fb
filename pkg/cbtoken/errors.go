package cbtoken

import "errors"

var (
	// ErrTampered is returned for every callback data that fails to decode
	// or verify. Callers must not be able to tell the causes apart.
	ErrTampered = errors.New("cbtoken: tampered callback data")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadLen.
	// It signals a bug in the code building the keyboard.
	ErrPayloadTooLarge = errors.New("cbtoken: payload too large")
)

// TamperedError is the concrete error behind ErrTampered.
// Error() is the same for every cause; Reason() is for server-side logs only.
type TamperedError struct {
	reason string
}

func tampered(reason string) error { return &TamperedError{reason: reason} }

func (e *TamperedError) Error() string { return ErrTampered.Error() }

func (e *TamperedError) Is(target error) bool { return target == ErrTampered }

// Reason describes which check failed. Never send it to the user.
func (e *TamperedError) Reason() string {
	if e == nil {
		return ""
	}
	return e.reason
}

// TamperReason extracts the server-side reason from err, if any.
func TamperReason(err error) string {
	var te *TamperedError
	if errors.As(err, &te) {
		return te.Reason()
	}
	return ""
}
