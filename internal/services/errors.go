package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a missing input file. Aborts the call.
	ErrNotFound = errors.New("not found")
	// ErrModelLoad marks a recognizer that could not be loaded. Fatal for that configuration.
	ErrModelLoad = errors.New("model load failed")
	// ErrRecognition marks a per-call recognition failure.
	ErrRecognition = errors.New("recognition failed")
	// ErrInvalidState marks a render request against a failed or timestamp-less transcript.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnsupportedFormat marks an unknown subtitle format selector.
	ErrUnsupportedFormat = errors.New("unsupported format")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err is allowed to abort a pipeline call outright.
// Every other failure is reported through a failed transcript instead.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrModelLoad)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
