package core

import (
	"errors"
	"fmt"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitUsage       = 2
	ExitUnavailable = 3
	ExitNotFound    = 4
	ExitConflict    = 5
)

var (
	// ErrUnsupportedAction means the target does not implement the action.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrNotConnected means the hub session is down.
	ErrNotConnected = hub.ErrNotConnected
	// ErrPlaybackFailed means every playback strategy failed.
	ErrPlaybackFailed = errors.New("could not start playback")
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyCode maps bridge reply codes to CLI exit codes.
func ErrorForReplyCode(code string, message string) *CLIError {
	switch code {
	case "NOT_FOUND":
		return &CLIError{Code: ExitNotFound, Msg: message}
	case "CONFLICT":
		return &CLIError{Code: ExitConflict, Msg: message}
	case "INVALID":
		return &CLIError{Code: ExitUsage, Msg: message}
	case "UNAVAILABLE":
		return &CLIError{Code: ExitUnavailable, Msg: message}
	default:
		return &CLIError{Code: ExitRuntime, Msg: message}
	}
}

// ReplyCodeForError maps an error to a bridge reply code.
func ReplyCodeForError(err error) string {
	switch ExitCode(err) {
	case ExitUsage:
		return "INVALID"
	case ExitNotFound:
		return "NOT_FOUND"
	case ExitConflict:
		return "CONFLICT"
	case ExitUnavailable:
		return "UNAVAILABLE"
	default:
		return "FAILED"
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrPlaybackFailed) {
		return ExitUnavailable
	}
	return ExitRuntime
}

// classifyHubError maps hub adapter errors onto the core taxonomy.
func classifyHubError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, hub.ErrNotSupported) && !errors.Is(err, ErrUnsupportedAction) {
		return fmt.Errorf("%w: %w", ErrUnsupportedAction, err)
	}
	return err
}
