package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"UNAVAILABLE", ExitUnavailable},
		{"NOT_FOUND", ExitNotFound},
		{"CONFLICT", ExitConflict},
		{"INVALID", ExitUsage},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
		if test.code != "UNKNOWN" && ReplyCodeForError(err) != test.code {
			t.Fatalf("code %s did not round trip", test.code)
		}
	}
}

func TestExitCodeUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &CLIError{Code: ExitNotFound, Msg: "missing"})
	if ExitCode(wrapped) != ExitNotFound {
		t.Fatalf("expected wrapped CLIError code")
	}
	if ExitCode(fmt.Errorf("x: %w", ErrPlaybackFailed)) != ExitUnavailable {
		t.Fatalf("expected unavailable for playback failure")
	}
}

func TestClassifyHubError(t *testing.T) {
	err := classifyHubError(fmt.Errorf("call: %w", hub.ErrNotSupported))
	if !errors.Is(err, ErrUnsupportedAction) {
		t.Fatalf("expected unsupported action, got %v", err)
	}
	other := errors.New("boom")
	if classifyHubError(other) != other {
		t.Fatalf("expected passthrough")
	}
}
