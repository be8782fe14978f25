package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitInvalid means docquery ran but rejected the query: validate found
	// errors, or a sample document did not match.
	ExitInvalid = 1
	// ExitUsage means the query could not be produced at all: an unreadable
	// query file, a bad configuration or a condition the target cannot compile.
	ExitUsage = 2
)

// Error codes reported in CLIError.Code. E0xx are query file problems,
// E1xx are problems with the condition or aggregate it holds.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeUnsupported = "E002" // extension is not .cue, .json, .yaml or .yml
	ErrCodeParseFailed = "E003"
	ErrCodeLoadFailed  = "E004" // cue/load rejected the package
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006" // CUE value not concrete
	ErrCodeShape       = "E007"
	ErrCodeWriteFailed = "E008"

	ErrCodeInvalidCondition = "E101"
	ErrCodeInvalidAggregate = "E102"
	ErrCodeCompileFailed    = "E103"
)

// ExitError carries the process exit code for a failed command.
//
// Reported is set when the command already wrote the failure through its
// OutputFormatter, so main must not print it again.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// reported builds an ExitError for a failure the formatter already printed.
func reported(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...), Reported: true}
}

// usageError wraps err as an unprinted ExitUsage failure.
func usageError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf("%s: %w", msg, err)}
}

// ExitCode maps a command error to the process exit code. Errors that do not
// carry one are usage errors raised by cobra itself.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}

// OutputFormatter writes command results as text or as a CLIResponse
// envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose lines; Writer when nil
	Verbose   bool
	TraceID   string
}

func newTraceID() string {
	return uuid.NewString()
}

// CLIResponse is the JSON envelope every command emits with --format json.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// CLIError is one reported problem.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

// respond encodes resp as indented JSON, stamping the trace id.
func (f *OutputFormatter) respond(resp CLIResponse) error {
	resp.TraceID = f.TraceID
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success writes data. Text output prints it with fmt's default verb;
// commands with richer text output print it themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.respond(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes one failure. In text mode details are shown only when
// verbose, one "key: value" line each for map details.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "error %s: %s\n", code, message)
	if !f.Verbose || details == nil {
		return nil
	}
	if m, ok := details.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(f.Writer, "  %s: %v\n", k, m[k])
		}
		return nil
	}
	fmt.Fprintf(f.Writer, "  %v\n", details)
	return nil
}

// VerboseLog writes one diagnostic line when verbose. It never writes to
// Writer when ErrWriter is set, so JSON on stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintln(w, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}
