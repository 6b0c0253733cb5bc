package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStop is matched by every *ValidationError via errors.Is.
	ErrInvalidStop = errors.New("invalid stop")
	// ErrProviderUnavailable is matched by every *ProviderError via errors.Is.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrPositionUnavailable is matched by every *PositionError via errors.Is.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// ValidationError reports malformed input rejected before any optimization work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidStop }

// ProviderError reports an external metric, path or traffic source that failed or answered non-OK.
// It is never downgraded to a different metric.
type ProviderError struct {
	Provider string
	Op       string
	Status   string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Op)
	if e.Status != "" {
		msg += ": status " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

type PositionErrorCode int

const (
	PositionDenied PositionErrorCode = iota + 1
	PositionUnavailable
	PositionTimeout
)

func (c PositionErrorCode) String() string {
	switch c {
	case PositionDenied:
		return "denied"
	case PositionUnavailable:
		return "unavailable"
	case PositionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PositionError reports a live position sensor failure. It degrades navigation, never aborts it.
type PositionError struct {
	Code    PositionErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return "position: " + e.Code.String()
	}
	return fmt.Sprintf("position: %s: %s", e.Code, e.Message)
}

func (e *PositionError) Is(target error) bool { return target == ErrPositionUnavailable }
