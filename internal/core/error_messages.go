// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Users can quote the code when reporting a problem.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: An uploaded BOM exceeds the size limit
//	          Action: Remove unused sheets or columns and try again
//	          Patterns: "file too large"
//
//	FILE002 - Unsupported file: Only Excel workbooks can be compared
//	          Action: Save the BOM as .xlsx or .xls
//	          Patterns: "unsupported file type"
//
//	FILE003 - No file: One of the two BOM files is missing
//	          Action: Select both File 1 and File 2
//	          Patterns: "no file provided"
//
//	FILE004 - Empty file: The uploaded file is empty
//	          Action: Check that the file was saved correctly
//	          Patterns: "empty file"
//
// # Comparison Errors (CMP001-CMP099)
//
//	CMP001 - Backend rejected: The comparison service could not read the files
//	         Action: Check that both files contain a BOM with an MPN column
//	         Patterns: "comparison rejected"
//
//	CMP002 - Backend unavailable: The comparison service is unreachable
//	         Action: Please try again in a few moments
//	         Patterns: "connection refused", "comparison backend unavailable"
//
//	CMP003 - Timeout: The comparison took too long
//	         Action: Try smaller files or try again later
//	         Patterns: "context deadline exceeded", "timeout"
//
//	CMP004 - Busy: Too many comparisons in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many comparisons"
//
//	CMP005 - Bad response: The comparison service returned an unreadable result
//	         Action: Please try again or contact support
//	         Patterns: "decode comparison result"
//
//	CMP006 - Cancelled: The request was cancelled
//	         Action: Start a new comparison when ready
//	         Patterns: "context canceled"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: The comparison is no longer available
//	         Action: Run the comparison again
//	         Patterns: "session not found"
//
//	SES002 - No result: There is no comparison result to work with
//	         Action: Compare two BOM files first
//	         Patterns: "no comparison result"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check application logs for the
// original technical error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "An uploaded BOM exceeds the size limit",
			Action:  "Remove unused sheets or columns and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Only Excel workbooks can be compared",
			Action:  "Save the BOM as .xlsx or .xls",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "One of the two BOM files is missing",
			Action:  "Select both File 1 and File 2",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Check that the file was saved correctly",
			Code:    "FILE004",
		},
	},

	// Comparison errors
	{
		pattern: "comparison rejected",
		msg: UserMessage{
			Message: "The comparison service could not read the files",
			Action:  "Check that both files contain a BOM with an MPN column",
			Code:    "CMP001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The comparison service is unreachable",
			Action:  "Please try again in a few moments",
			Code:    "CMP002",
		},
	},
	{
		pattern: "comparison backend unavailable",
		msg: UserMessage{
			Message: "The comparison service is unreachable",
			Action:  "Please try again in a few moments",
			Code:    "CMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The comparison took too long",
			Action:  "Try smaller files or try again later",
			Code:    "CMP003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The comparison took too long",
			Action:  "Try smaller files or try again later",
			Code:    "CMP003",
		},
	},
	{
		pattern: "too many comparisons",
		msg: UserMessage{
			Message: "Too many comparisons in progress",
			Action:  "Please wait a moment and try again",
			Code:    "CMP004",
		},
	},
	{
		pattern: "decode comparison result",
		msg: UserMessage{
			Message: "The comparison service returned an unreadable result",
			Action:  "Please try again or contact support",
			Code:    "CMP005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Start a new comparison when ready",
			Code:    "CMP006",
		},
	},

	// Session errors
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "This comparison is no longer available",
			Action:  "Run the comparison again",
			Code:    "SES001",
		},
	},
	{
		pattern: "no comparison result",
		msg: UserMessage{
			Message: "There is no comparison result to work with",
			Action:  "Compare two BOM files first",
			Code:    "SES002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or the ERR000 fallback.
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

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
