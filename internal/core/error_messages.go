package core

// # Support Codes Reference
//
// Every error response carries a support code next to the error kind so an
// operator can find the cause quickly. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the upload exceeds the 10MB cap
//	          Patterns: "file too large"
//	FILE002 - Unsupported type: only .xlsx and .xls are accepted
//	          Patterns: "unsupported file type"
//	FILE003 - No file: the ovdFile form field was empty
//	          Patterns: "no file provided"
//	FILE004 - Empty file: the workbook has no bytes
//	          Patterns: "empty file"
//	FILE005 - No data: the sheet has a header but no rows
//	          Patterns: "no data rows"
//	FILE006 - Unreadable workbook: not an OVDLA spreadsheet
//	          Patterns: "invalid spreadsheet"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date            Patterns: "invalid date"
//	VAL002 - Invalid number          Patterns: "invalid number"
//	VAL003 - Required field missing  Patterns: "required field"
//	VAL004 - Negative amount         Patterns: "negative amount"
//	VAL005 - Empty update            Patterns: "no valid fields"
//	VAL006 - Bad direction           Patterns: "invalid direction"
//	VAL007 - Bad date range          Patterns: "date range"
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - No data for the export criteria   Patterns: "no data found"
//	SYNC002 - Too many imports in progress      Patterns: "too many concurrent imports"
//
// # Schedule Errors (SCH001-SCH099)
//
//	SCH001 - Invalid cron expression  Patterns: "invalid cron expression"
//	SCH002 - Schedule missing         Patterns: "schedule frequency"
//	SCH003 - Unknown sync config      Patterns: "sync config not found"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key          Patterns: "duplicate key"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key            Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout"
//	DB007 - Deadlock               Patterns: "deadlock"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled   Patterns: "context canceled"
//	REQ002 - Request timed out   Patterns: "context deadline exceeded"
//	REQ003 - Rate limited        Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application logs for
// the trace id to find the original technical error.
//
// Patterns are matched case-insensitively using strings.Contains, and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Support code
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{"file too large", UserMessage{"File exceeds maximum size limit (10MB)", "Split the report into smaller files", "FILE001"}},
	{"unsupported file type", UserMessage{"Only .xlsx and .xls files are supported", "Export the report from Excel as .xlsx", "FILE002"}},
	{"no file provided", UserMessage{"No file was uploaded", "Attach the spreadsheet in the ovdFile field", "FILE003"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a spreadsheet with data rows", "FILE004"}},
	{"no data rows", UserMessage{"The spreadsheet has no data rows", "Add report rows below the header", "FILE005"}},
	{"invalid spreadsheet", UserMessage{"The file is not a readable OVD spreadsheet", "Check the file opens in Excel and uses the OVDLA layout", "FILE006"}},

	// Validation errors; "date range" precedes "invalid date"
	{"date range", UserMessage{"The date range is incomplete or reversed", "Send startDate and endDate with start before end", "VAL007"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD for Date_UTC", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use plain decimal numbers for consumption values", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Fill in Date_UTC and IMO on every row", "VAL003"}},
	{"negative amount", UserMessage{"Consumption values cannot be negative", "Correct the reported amounts", "VAL004"}},
	{"no valid fields", UserMessage{"No updatable fields were provided", "Send at least one allowed schedule field", "VAL005"}},
	{"invalid direction", UserMessage{"Unknown sync direction", "Use IMPORT, EXPORT or BIDIRECTIONAL", "VAL006"}},

	// Sync errors
	{"no data found", UserMessage{"No data found for the specified criteria", "Widen the date range or check the vessel filter", "SYNC001"}},
	{"too many concurrent imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "SYNC002"}},

	// Schedule errors
	{"invalid cron expression", UserMessage{"The cron expression is not valid", "Use five fields, e.g. 0 2 * * *", "SCH001"}},
	{"schedule frequency", UserMessage{"The schedule is incomplete", "Set schedule_frequency or cron_expression", "SCH002"}},
	{"sync config not found", UserMessage{"Sync configuration not found", "Refresh the schedule list", "SCH003"}},

	// Database errors
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check for duplicate rows in the report", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Check the voyage and ship ids", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Check the voyage and ship ids", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Request errors
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "REQ002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "REQ003"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or ERR000.
//
// Example:
//
//	msg := MapError(errors.New("invalid cron expression \"61 * * * *\""))
//	// msg.Code == "SCH001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
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

// IsUserFacing checks if an error matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
