package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ToolErrorMessage describes a failed tool invocation.
	ToolErrorMessage = "tool invocation failed"
	// DecisionErrorMessage describes an unparseable model decision.
	DecisionErrorMessage = "could not parse model decision"
	// TimeoutErrorMessage describes a turn that ran out of time.
	TimeoutErrorMessage = "turn timed out"
)

// Agent error taxonomy. Match with errors.Is.
var (
	ErrToolInvocation = errors.New("tool invocation failure")
	ErrDecisionParse  = errors.New("decision parse failure")
	ErrUnknownTool    = errors.New("unknown tool")
	ErrLoopBound      = errors.New("agent loop bound exceeded")
	ErrTurnTimeout    = errors.New("turn timeout")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// ToolError is the failure of one named tool.
type ToolError struct {
	Name string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrToolInvocation, e.Name, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func (e *ToolError) Is(target error) bool {
	return target == ErrToolInvocation
}

// WrapTool marks err as a failure of the named tool.
func WrapTool(name string, err error) error {
	if err == nil {
		return nil
	}
	return New(&ToolError{Name: name, Err: err}, http.StatusBadGateway, ToolErrorMessage)
}

// DecisionParse builds a decision parse failure with a short reason.
func DecisionParse(reason string) error {
	return New(fmt.Errorf("%w: %s", ErrDecisionParse, reason), http.StatusUnprocessableEntity, DecisionErrorMessage)
}

// TurnTimeout wraps a deadline expiry of a single turn.
func TurnTimeout(err error) error {
	return New(fmt.Errorf("%w: %w", ErrTurnTimeout, err), http.StatusGatewayTimeout, TimeoutErrorMessage)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
