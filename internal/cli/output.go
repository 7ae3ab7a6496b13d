package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the action could not be carried out
	ExitCommandError = 2 // bad config, unreachable server, bad arguments
)

// exitError pairs a command error with the process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

// exitErrorf formats like fmt.Errorf (%w included) and tags the result with
// an exit code.
func exitErrorf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to the process exit code. Errors without a
// code count as ExitFailure.
func ExitCode(err error) int {
	var coded interface{ ExitCode() int }
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &coded):
		return coded.ExitCode()
	default:
		return ExitFailure
	}
}

// OutputFormatter handles JSON vs text output.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// envelope wraps JSON output.
type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// Success prints data as a JSON envelope or as its text form.
func (f *OutputFormatter) Success(data fmt.Stringer) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data.String())
	return err
}

// VerboseLog writes to ErrWriter when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
