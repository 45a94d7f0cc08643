package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/loginsight/internal/api"
	"github.com/roach88/loginsight/internal/config"
	"github.com/roach88/loginsight/internal/query"
	"github.com/roach88/loginsight/internal/queryurl"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Server rejected the request or returned an unusable response
	ExitCommandError = 2 // Bad input: missing file, malformed definition, invalid config
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeNotFound       = "E002" // Input file not found
	ErrCodeDefinition     = "E003" // Malformed query or messages file
	ErrCodeInvalidQuery   = "E004" // Query failed validation
	ErrCodeEncoding       = "E005" // Value not representable in the configured charset
	ErrCodeConfig         = "E006" // Invalid configuration
	ErrCodeAuth           = "E007" // Login rejected or session expired
	ErrCodeAPI            = "E008" // Non-success status from the server
	ErrCodeResponse       = "E009" // Response body could not be decoded
	ErrCodeJournal        = "E010" // Journal could not be opened or read
	ErrCodeInvalidMessage = "E011" // Ingestion message failed validation
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error from the lower layers to an error code and exit code.
func classify(err error) (string, int) {
	var loadErr *LoadError
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	case query.IsInvalidConstraint(err), query.IsInvalidAggregation(err):
		return ErrCodeInvalidQuery, ExitCommandError
	case queryurl.IsEncodingError(err):
		return ErrCodeEncoding, ExitCommandError
	case config.IsInvalid(err):
		return ErrCodeConfig, ExitCommandError
	case api.IsInvalidMessage(err):
		return ErrCodeInvalidMessage, ExitCommandError
	case api.IsAuthError(err), errors.Is(err, api.ErrNotAuthenticated):
		return ErrCodeAuth, ExitFailure
	case api.IsAPIError(err):
		return ErrCodeAPI, ExitFailure
	case api.IsParseError(err):
		return ErrCodeResponse, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textRenderer is implemented by results with a human-readable layout.
type textRenderer interface {
	renderText(w io.Writer)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// The message names the step that failed.
func (f *OutputFormatter) Fail(step string, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", step, err), nil); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(exit, step, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Verbose lines always go to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
