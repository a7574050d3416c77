package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestManifestError(t *testing.T) {
	err := NewManifestError("conflicting project paths", ErrConflictingProjects).
		WithTree("libs").
		WithPaths("libs", "libs/core")

	msg := err.Error()
	for _, want := range []string{"manifest error", "tree=libs", "paths=libs, libs/core", "conflicting project paths"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	if !Is(err, ErrConflictingProjects) {
		t.Error("expected ManifestError to match its cause")
	}
	if !Is(err, &ManifestError{}) {
		t.Error("expected ManifestError to match its type")
	}
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() = %v, want critical", GetSeverity(err))
	}
	if !IsConfigurationError(err) {
		t.Error("manifest errors are configuration errors")
	}
}

func TestTaskError(t *testing.T) {
	err := NewTaskError("git p4 sync exited with status 1", ErrImportFailed).
		WithProject("libs/core").
		WithAttempt(2).
		WithOutput("stderr: connection refused")

	msg := err.Error()
	if !strings.HasPrefix(msg, "task error [project=libs/core, attempt=2]") {
		t.Errorf("unexpected prefix: %q", msg)
	}
	if !strings.HasSuffix(msg, "\nstderr: connection refused") {
		t.Errorf("expected output to be appended: %q", msg)
	}
	if !IsRetryable(err) {
		t.Error("task errors should be retryable")
	}
	if IsConfigurationError(err) {
		t.Error("task errors are not configuration errors")
	}
}

func TestMirrorError(t *testing.T) {
	err := NewMirrorError("failed to read ref", ErrRefNotFound).
		WithMirror("/m/core.git").
		WithRef("refs/remotes/p4/master")

	msg := err.Error()
	if !strings.Contains(msg, "ref=refs/remotes/p4/master, mirror=/m/core.git") {
		t.Errorf("missing context: %q", msg)
	}
	if !Is(err, ErrRefNotFound) {
		t.Error("expected match on ErrRefNotFound")
	}
}

func TestPublishErrorRetryableByStatus(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{code: 400, retryable: false},
		{code: 409, retryable: false},
		{code: 502, retryable: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			err := NewPublishError("create project", ErrHostRequest).WithStatusCode(tt.code)
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := NewValidationError("unknown token key").WithField("core|x").WithValue("x")
	if !Is(err, ErrInvalidInput) {
		t.Error("validation errors should match ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "field=core|x, value=x") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !IsUserFacing(err) {
		t.Error("validation errors are user facing")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want warning", GetSeverity(err))
	}
}

func TestClassificationOfPlainErrors(t *testing.T) {
	plain := New("boom")
	if IsRetryable(plain) || IsUserFacing(plain) {
		t.Error("plain errors are neither retryable nor user facing")
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v", GetSeverity(plain))
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Error("nil error should have debug severity")
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
	wrapped := Wrapf(NewTaskError("failed", nil), "project %s", "core")
	if !IsRetryable(wrapped) {
		t.Error("classification should see through wrapping")
	}
}
