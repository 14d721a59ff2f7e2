package deepface

import (
	"errors"
	"fmt"
)

var (
	ErrDeepFaceUnavailable = errors.New("deepface service unavailable")
	ErrDeepFaceTimeout     = errors.New("deepface request timeout")
	ErrInvalidResponse     = errors.New("invalid response from deepface")
	ErrInvalidImageFormat  = errors.New("invalid image format for deepface")
	ErrUnexpectedDimension = errors.New("deepface embedding has unexpected dimension")
)

// statusError is a non-2xx answer from the DeepFace API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.code, e.body)
}

// isClientError checks if the error is a 4xx client error
func isClientError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500
}
