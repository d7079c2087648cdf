package domain

import (
	"errors"
	"fmt"
	"strings"
)

// State-machine and lookup errors. Under correct usage these should not
// reach an operator; handlers log them and answer generically.
var (
	ErrNotFound         = errors.New("not found")
	ErrBusy             = errors.New("submission already in progress")
	ErrNotReady         = errors.New("images still pending upload")
	ErrInvalidPath      = errors.New("invalid field path")
	ErrInvalidValue     = errors.New("value is not JSON-serializable")
	ErrDisposed         = errors.New("draft disposed")
	ErrLocalURL         = errors.New("local preview url is not a persisted url")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrUnknownEntity    = errors.New("unknown entity type")
)

// FieldError is one user-fixable problem, scoped to a field path.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError reports a failed image upload. Fatal for the main image only.
type UploadError struct {
	AssetID AssetID
	Main    bool
	Err     error
}

func (e *UploadError) Error() string {
	role := "gallery"
	if e.Main {
		role = "main"
	}
	return fmt.Sprintf("upload %s image %s: %v", role, e.AssetID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError wraps a transport or backend rejection; the draft is kept.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.Err.Error() }

func (e *SubmissionError) Unwrap() error { return e.Err }

// SelectionError is returned by the quotation engine before any arithmetic.
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string { return "invalid selection: " + e.Reason }

func (e *SelectionError) Is(target error) bool { return target == ErrInvalidSelection }
