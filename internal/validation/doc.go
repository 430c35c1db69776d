// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a
// thread-safe singleton validator instance and user-friendly error messages.
// It integrates with the API error format for consistent error responses.
//
// # Quick Start
//
//	type SetCredentialRequest struct {
//	    Cookie string `validate:"required,min=16"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req SetCredentialRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - url: Valid URL format
//
// Numeric validations:
//   - gte=n / lte=n: Inclusive bounds
//   - min=n / max=n: Minimum and maximum value
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field failure; RequestValidationError
// aggregates them and converts to the API error format via ToAPIError:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Cookie must be at least 16 characters",
//	    "details": {"field": "Cookie", "tag": "min", "value": "short"}
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
package validation
