package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies why an ingestion aborted. The value doubles as the error
// code sent to clients.
type Kind string

const (
	KindMkdir        Kind = "mkdir_failed"
	KindUnzip        Kind = "unzip_failed"
	KindNoCSS        Kind = "no_css"
	KindInvalidCSS   Kind = "invalid_css"
	KindCSSTooLarge  Kind = "css_too_large"
	KindCSSRead      Kind = "css_read_error"
	KindNoFontFaces  Kind = "no_font_faces"
	KindUnclassified Kind = "ingest_failed"
)

var messages = map[Kind]string{
	KindMkdir:        "Failed to create upload directory",
	KindUnzip:        "Failed to extract ZIP file. Please ensure the file is a valid ZIP archive.",
	KindNoCSS:        "No CSS file found in the font kit",
	KindInvalidCSS:   "Invalid CSS file",
	KindCSSTooLarge:  "CSS file is too large (max 1MB)",
	KindCSSRead:      "Could not read CSS file",
	KindNoFontFaces:  "No valid @font-face rules found in CSS",
	KindUnclassified: "Failed to process font kit",
}

// Error is returned for every aborted ingestion. Err carries the internal
// cause and must only be logged.
type Error struct {
	Kind Kind
	Err  error
	msg  string
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// withMessage overrides the client message, used where one kind has
// several causes worth telling apart.
func (e *Error) withMessage(msg string) *Error {
	e.msg = msg
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the machine readable error code.
func (e *Error) Code() string { return string(e.Kind) }

// Message is the fixed, client safe description of the failure.
func (e *Error) Message() string {
	if e.msg != "" {
		return e.msg
	}
	if m, ok := messages[e.Kind]; ok {
		return m
	}
	return messages[KindUnclassified]
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
