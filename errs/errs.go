// Package errs defines the failure categories a driver run can end with.
//
// Every component returns one of these types (wrapped with a stack by
// github.com/pkg/errors) and never recovers from it. Only the CLI entry point
// turns an error into a diagnostic and a non-zero exit status.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AuthError means the remote session could not be established.
type AuthError struct {
	Host string
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cannot establish ssh session to %s@%s: %v", e.User, e.Host, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ExecutionError means a remote command exited non-zero or the transport
// failed while it was running. Err is nil for a plain non-zero exit.
type ExecutionError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SerializationError means an experiment descriptor could not be encoded or
// decoded.
type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s: %v", e.What, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ConfigurationError means a required input is missing or invalid.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func NewAuth(host, user string, err error) error {
	return errors.WithStack(&AuthError{Host: host, User: user, Err: err})
}

func NewExecution(command string, exitCode int, stdout, stderr string, err error) error {
	return errors.WithStack(&ExecutionError{
		Command:  command,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	})
}

func NewSerialization(what string, err error) error {
	return errors.WithStack(&SerializationError{What: what, Err: err})
}

func NewConfiguration(field, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsExecution(err error) bool {
	var target *ExecutionError
	return errors.As(err, &target)
}

func IsSerialization(err error) bool {
	var target *SerializationError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// Describe renders err for the operator. Captured remote output of a failed
// command is appended, and with trace set the stack recorded at the point of
// failure is included as well.
func Describe(err error, trace bool) string {
	var b strings.Builder
	b.WriteString("Encountered the following error:\n")
	if trace {
		fmt.Fprintf(&b, "%+v\n", err)
	} else {
		fmt.Fprintf(&b, "%v\n", err)
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		if out := strings.TrimRight(execErr.Stdout, "\n"); out != "" {
			fmt.Fprintf(&b, "--- stdout ---\n%s\n", out)
		}
		if out := strings.TrimRight(execErr.Stderr, "\n"); out != "" {
			fmt.Fprintf(&b, "--- stderr ---\n%s\n", out)
		}
	}
	return b.String()
}
