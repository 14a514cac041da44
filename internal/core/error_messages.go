package core

// error_messages.go maps batch-level errors to operator-facing messages with
// a code support staff can look up.
//
// # Error Codes Reference
//
// Import Errors (IMP001-IMP099)
//
//	IMP001 - Unknown record type: the schema name is not registered
//	         Action: Choose one of the listed record types
//
// File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Action: Split the file into smaller batches
//	FILE002 - Unreadable file: the text could not be split into rows
//	          Action: Save the file as comma-separated UTF-8
//	FILE003 - Bad header line: missing, blank or duplicated column names
//	          Action: Make the first line a list of unique column names
//	FILE004 - No file selected
//	          Action: Please select a CSV file to upload
//	FILE005 - Not a text file: the upload looks like a spreadsheet or binary
//	          Action: Export the sheet as CSV and upload that
//
// Session Errors (SES001-SES099)
//
//	SES001 - Import not found: the session expired, was cancelled or committed
//	SES002 - Action not allowed in the current import state
//	SES003 - Too many open imports
//	SES004 - Nothing to commit: every row is invalid or the file is empty
//	SES005 - Request cancelled
//	SES006 - Request timed out
//
// Commit Errors (CMT001-CMT099)
//
//	CMT001 - Commit already running for this import
//	CMT002 - Another import is committing the same record type
//	CMT003 - Too many commits running
//	CMT004 - Duplicate record rejected by the database
//	CMT005 - Database unavailable
//	CMT006 - Commit failed for another reason; the preview is kept for retry
//	CMT007 - Already committed: an earlier attempt was stored
//
// Validation Errors (VAL001-VAL099)
//
//	VAL001 - Required field is empty
//	VAL002 - Value does not match the field format
//
// Rate Limiting
//
//	RATE001 - Too many requests
//
// Default
//
//	ERR000 - Unknown error; check application logs for the technical error
//
// Typed errors are matched first with errors.Is and errors.As. Anything else
// falls back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	{ErrUnknownSchema, UserMessage{
		Message: "Unknown record type",
		Action:  "Choose one of the listed record types",
		Code:    "IMP001",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller batches",
		Code:    "FILE001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired. Please upload the file again",
		Code:    "SES001",
	}},
	{ErrInvalidTransition, UserMessage{
		Message: "That action is not allowed for this import right now",
		Action:  "Refresh the preview and try again",
		Code:    "SES002",
	}},
	{ErrTooManySessions, UserMessage{
		Message: "Too many imports are open",
		Action:  "Confirm or cancel an open import first",
		Code:    "SES003",
	}},
	{ErrNothingToCommit, UserMessage{
		Message: "There are no valid rows to commit",
		Action:  "Download the invalid rows, fix them and upload again",
		Code:    "SES004",
	}},
	{ErrCommitInFlight, UserMessage{
		Message: "This import is already being committed",
		Action:  "Wait for the current commit to finish",
		Code:    "CMT001",
	}},
	{ErrCollectionBusy, UserMessage{
		Message: "Another import is committing the same record type",
		Action:  "Please wait a moment and try again",
		Code:    "CMT002",
	}},
	{ErrTooManyCommits, UserMessage{
		Message: "System is busy committing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "CMT003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SES005",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "SES006",
	}},
}

var decodeMessages = map[DecodeReason]UserMessage{
	MalformedInput: {
		Message: "File could not be read as CSV",
		Action:  "Save the file as comma-separated UTF-8 and upload it again",
		Code:    "FILE002",
	},
	MalformedHeader: {
		Message: "The header line is missing or has blank or duplicate column names",
		Action:  "Make the first line a list of unique column names",
		Code:    "FILE003",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that arrive as text, mostly from the database
// driver inside a CommitError. Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record in this batch already exists",
		Action:  "Remove the duplicates from the file and upload again",
		Code:    "CMT004",
	}},
	{"violates unique", UserMessage{
		Message: "A record in this batch already exists",
		Action:  "Remove the duplicates from the file and upload again",
		Code:    "CMT004",
	}},
	{"already committed", UserMessage{
		Message: "This import was already committed",
		Action:  "Check the batch history before importing the file again",
		Code:    "CMT007",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to reach the database",
		Action:  "Please try again in a few moments",
		Code:    "CMT005",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "CMT005",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
	}},
	{"unsupported file type", UserMessage{
		Message: "The file is not a text file",
		Action:  "Export the spreadsheet as CSV and upload that",
		Code:    "FILE005",
	}},
	{"required", UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
		Code:    "VAL001",
	}},
	{"format", UserMessage{
		Message: "Value does not match the field format",
		Action:  "Check dates, numbers and email addresses in the file",
		Code:    "VAL002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var commitFailedMessage = UserMessage{
	Message: "The commit failed. Your preview was kept",
	Action:  "Retry the commit or cancel the import",
	Code:    "CMT006",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(errors.Wrap(ErrSessionNotFound, "abc"))
//	// msg.Code == "SES001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		if msg, ok := decodeMessages[decodeErr.Reason]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return commitFailedMessage
	}

	return defaultMessage
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

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err into a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
