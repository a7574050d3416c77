package cmd

import (
	"fmt"

	"github.com/Iron-Ham/depo/internal/errors"
)

// Exit codes returned by the depo binary.
const (
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.IsConfigurationError(err) {
		return ExitConfig
	}
	return ExitFailure
}

// ErrorMessage renders a command error for the terminal. Critical errors are
// labelled as such; errors that are not meant for users and transient ones
// carry a hint.
func ErrorMessage(err error) string {
	label := "Error"
	switch {
	case errors.IsConfigurationError(err):
		label = "Configuration error"
	case errors.GetSeverity(err) == errors.SeverityWarning:
		label = "Warning"
	}
	if errors.GetSeverity(err) >= errors.SeverityCritical {
		label += " (" + errors.SeverityCritical.String() + ")"
	}

	msg := fmt.Sprintf("%s: %v", label, err)
	switch {
	case errors.IsRetryable(err):
		msg += "\nThe failure may be transient; running depo again can succeed."
	case !errors.IsUserFacing(err):
		msg += "\nSee 'depo logs --level error' for details."
	}
	return msg
}
