package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that errors produced by WithError still compare
// equal to the sentinel they were derived from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// WithMessage returns a copy carrying a more specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    msg,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	// Frame acquisition
	ErrFrameUnavailable = &AppError{
		Code:       "FRAME_UNAVAILABLE",
		Message:    "No camera frame available",
		StatusCode: 503,
	}

	// Face pipeline
	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrLowQuality = &AppError{
		Code:       "LOW_QUALITY",
		Message:    "Face region quality too low for recognition",
		StatusCode: 422,
	}

	ErrEmbedderUnavailable = &AppError{
		Code:       "EMBEDDER_UNAVAILABLE",
		Message:    "Face embedding service unavailable",
		StatusCode: 503,
	}

	// Enrollment
	ErrNoQualifyingShot = &AppError{
		Code:       "ENROLLMENT_NO_QUALIFYING_SHOT",
		Message:    "No usable face was captured before the enrollment deadline",
		StatusCode: 422,
	}

	ErrEnrollmentBusy = &AppError{
		Code:       "ENROLLMENT_BUSY",
		Message:    "Another enrollment is in progress",
		StatusCode: 409,
	}

	// Storage
	ErrIdentityNotFound = &AppError{
		Code:       "IDENTITY_NOT_FOUND",
		Message:    "Identity not found",
		StatusCode: 404,
	}

	ErrStoreWriteFailed = &AppError{
		Code:       "STORE_WRITE_FAILED",
		Message:    "Record could not be persisted",
		StatusCode: 500,
	}
)
