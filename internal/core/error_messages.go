package core

// error_messages.go maps technical errors to user-facing messages with a
// code that can be quoted in support requests.
//
// # Error Codes Reference
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - Unreadable file: The source file could not be read
//	          Action: Check the file is a delimited text export or .xlsx workbook
//	LOAD002 - Empty file: The file has no header row
//	          Action: Export the data again with column headers
//	LOAD003 - Encoding error: The file is not valid UTF-8
//	          Action: Save the file as UTF-8, or enable lenient decoding
//	LOAD004 - File not found: The source path does not exist
//	          Action: Check the path and try again
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Missing mapping: A canonical field has no source column
//	         Action: Assign a column to each of serial, time, latitude, longitude
//	MAP002 - Unknown column: A mapped column is not in the loaded file
//	         Action: Pick columns from the file's header
//
// # Date Errors (DATE001-DATE099)
//
//	DATE001 - Invalid date: A cutoff or time format could not be parsed
//	          Action: Use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export failed: The output file could not be written
//	         Action: Check the destination folder exists and is writable
//	EXP002 - Nothing to export: No converted data is available
//	         Action: Run a conversion before exporting
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: The session expired or never existed
//	         Action: Upload the file again
//	SES002 - No data: No source file has been loaded in this session
//	         Action: Load a source file first
//	SES003 - Incomplete cutoff: A per-serial cutoff lacks a serial or date
//	         Action: Select a serial number and enter a start date
//
// # Profile Errors (PRF001-PRF099)
//
//	PRF001 - Profile not found: No saved profile has that name
//	         Action: List the saved profiles and pick one
//	PRF002 - Invalid profile name
//	         Action: Use letters, digits, '.', '_' or '-'
//
// # Upload Errors (UPL001-UPL099), File Errors (FILE001-FILE099)
//
//	UPL002 - System busy: Too many conversions in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	FILE001 - File too large
//	FILE004 - No file provided
//	RATE001 - Too many requests from one client
//	REQ001 - Malformed request body or parameters
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or check the logs
//
// Typed errors from this package are classified first with errors.As and
// errors.Is. Anything else falls through to case-insensitive substring
// patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgLoadFailed = UserMessage{
		Message: "The source file could not be read",
		Action:  "Check the file is a delimited text export or .xlsx workbook",
		Code:    "LOAD001",
	}
	msgEmptyFile = UserMessage{
		Message: "The file has no header row",
		Action:  "Export the data again with column headers",
		Code:    "LOAD002",
	}
	msgEncoding = UserMessage{
		Message: "The file is not valid UTF-8",
		Action:  "Save the file as UTF-8, or enable lenient decoding",
		Code:    "LOAD003",
	}
	msgNotFound = UserMessage{
		Message: "The source file does not exist",
		Action:  "Check the path and try again",
		Code:    "LOAD004",
	}
	msgMissingMapping = UserMessage{
		Message: "A canonical field has no source column",
		Action:  "Assign a column to each of serial, time, latitude and longitude",
		Code:    "MAP001",
	}
	msgUnknownColumn = UserMessage{
		Message: "A mapped column is not in the loaded file",
		Action:  "Pick columns from the file's header",
		Code:    "MAP002",
	}
	msgInvalidDate = UserMessage{
		Message: "Invalid date format",
		Action:  "Use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS",
		Code:    "DATE001",
	}
	msgExportFailed = UserMessage{
		Message: "The output file could not be written",
		Action:  "Check the destination folder exists and is writable",
		Code:    "EXP001",
	}
	msgNothingToExport = UserMessage{
		Message: "Nothing to export",
		Action:  "Convert data first",
		Code:    "EXP002",
	}
	msgSessionNotFound = UserMessage{
		Message: "Session not found",
		Action:  "The session may have expired. Please upload the file again",
		Code:    "SES001",
	}
	msgNoData = UserMessage{
		Message: "No source file loaded",
		Action:  "Load a source file first",
		Code:    "SES002",
	}
	msgCutoffInput = UserMessage{
		Message: "Incomplete per-serial cutoff",
		Action:  "Select a serial number and enter a start date",
		Code:    "SES003",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive as plain text, e.g. from the
// transport layer. More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "file too large", msg: UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file or convert it with the command line tool",
		Code:    "FILE001",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or .xlsx file to upload",
		Code:    "FILE004",
	}},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "invalid date", msg: msgInvalidDate},
	{pattern: "missing column mapping", msg: msgMissingMapping},
	{pattern: "mapped column not found", msg: msgUnknownColumn},
	{pattern: "too many conversions", msg: msgBusy},
	{pattern: "session not found", msg: msgSessionNotFound},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "profile not found", msg: UserMessage{
		Message: "Profile not found",
		Action:  "List the saved profiles and pick one",
		Code:    "PRF001",
	}},
	{pattern: "profile name must", msg: UserMessage{
		Message: "Invalid profile name",
		Action:  "Use letters, digits, '.', '_' or '-'",
		Code:    "PRF002",
	}},
	{pattern: "invalid request", msg: UserMessage{
		Message: "Invalid request",
		Action:  "Check the request body and parameters",
		Code:    "REQ001",
	}},
	{pattern: "rate limit", msg: UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := core.LoadFile(ctx, "fixes.csv", core.LoadOptions{})
//	msg := core.MapError(err)
//	// msg.Code == "LOAD004" when the file is missing
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := classify(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// classify recognizes the typed errors returned by this package.
func classify(err error) (UserMessage, bool) {
	var (
		loadErr    *LoadError
		mappingErr *MappingError
		dateErr    *DateFormatError
		exportErr  *ExportError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	case errors.Is(err, ErrTooManyConversions):
		return msgBusy, true
	case errors.Is(err, ErrSessionNotFound):
		return msgSessionNotFound, true
	case errors.Is(err, ErrNoData):
		return msgNoData, true
	case errors.Is(err, ErrNothingToExport):
		return msgNothingToExport, true
	case errors.Is(err, ErrCutoffInput):
		return msgCutoffInput, true
	case errors.As(err, &loadErr):
		switch {
		case errors.Is(err, ErrEmptyFile):
			return msgEmptyFile, true
		case errors.Is(err, ErrInvalidUTF8):
			return msgEncoding, true
		case errors.Is(err, os.ErrNotExist):
			return msgNotFound, true
		}
		return msgLoadFailed, true
	case errors.As(err, &mappingErr):
		if len(mappingErr.Missing) > 0 {
			return msgMissingMapping, true
		}
		return msgUnknownColumn, true
	case errors.As(err, &dateErr):
		return msgInvalidDate, true
	case errors.As(err, &exportErr):
		return msgExportFailed, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps the original for logging.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
