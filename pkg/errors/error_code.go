/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const WrytesPrefix = "Wrytes."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00–99), used to distinguish errors from different business interfaces.
   00: General errors
   01: Credential-related errors
   02: Environment-related errors
   03: Deployment-related errors
   [yyy] Error code range (000–999)
*/

// public: 00xxx
const (
	InternalError   = WrytesPrefix + "00001"
	BadRequest      = WrytesPrefix + "00002"
	Forbidden       = WrytesPrefix + "00003"
	AlreadyExist    = WrytesPrefix + "00004"
	NotFound        = WrytesPrefix + "00005"
	Unauthorized    = WrytesPrefix + "00006"
	TooManyRequests = WrytesPrefix + "00007"
)

// credential: 01xxx
const (
	MagicLinkInvalid = WrytesPrefix + "01001"
	ApiKeyInvalid    = WrytesPrefix + "01002"
	ScopeMismatch    = WrytesPrefix + "01003"
)

// environment: 02xxx
const (
	EnvironmentNotFound = WrytesPrefix + "02001"
	DomainTaken         = WrytesPrefix + "02002"
)

// deployment: 03xxx
const (
	DeploymentNotFound = WrytesPrefix + "03001"
	JobNotFound        = WrytesPrefix + "03002"
)

// ApiError is the unified error carried between the service layer and the
// handler surface. Reason is one of the stable codes above; HttpCode is the
// status the handler surface responds with.
type ApiError struct {
	HttpCode int
	Reason   string
	Message  string
}

// Error implements the error interface.
func (e *ApiError) Error() string {
	return e.Message
}

// ReasonForError returns the Wrytes reason code of err, or "" for foreign errors.
func ReasonForError(err error) string {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	return ""
}

// CodeForError returns the HTTP status code of err, defaulting to 500 for
// errors that did not originate from this package.
func CodeForError(err error) int {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.HttpCode
	}
	return http.StatusInternalServerError
}

// IsWrytes returns true if the specified error carries a Wrytes reason code.
func IsWrytes(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(ReasonForError(err), WrytesPrefix)
}

func IsAlreadyExist(err error) bool {
	return ReasonForError(err) == AlreadyExist || ReasonForError(err) == DomainTaken
}

func IsBadRequest(err error) bool {
	return ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return ReasonForError(err) == InternalError
}

func IsUnauthorized(err error) bool {
	reason := ReasonForError(err)
	return reason == Unauthorized || reason == MagicLinkInvalid || reason == ApiKeyInvalid
}

func IsForbidden(err error) bool {
	reason := ReasonForError(err)
	return reason == Forbidden || reason == ScopeMismatch
}

func IsNotFound(err error) bool {
	reason := ReasonForError(err)
	if reason == NotFound || reason == EnvironmentNotFound ||
		reason == DeploymentNotFound || reason == JobNotFound {
		return true
	}
	return false
}

func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func NewBadRequest(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusBadRequest,
		Reason:   BadRequest,
		Message:  fmt.Sprintf("Bad request. %s", message),
	}
}

func NewInternalError(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusInternalServerError,
		Reason:   InternalError,
		Message:  fmt.Sprintf("Internal error. %s", message),
	}
}

func NewAlreadyExist(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusConflict,
		Reason:   AlreadyExist,
		Message:  message,
	}
}

func NewForbidden(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusForbidden,
		Reason:   Forbidden,
		Message:  message,
	}
}

func NewUnauthorized(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusUnauthorized,
		Reason:   Unauthorized,
		Message:  message,
	}
}

func NewMagicLinkInvalid() *ApiError {
	return &ApiError{
		HttpCode: http.StatusUnauthorized,
		Reason:   MagicLinkInvalid,
		Message:  "Magic link is invalid, expired, or already used.",
	}
}

func NewApiKeyInvalid() *ApiError {
	return &ApiError{
		HttpCode: http.StatusUnauthorized,
		Reason:   ApiKeyInvalid,
		Message:  "API key is invalid, revoked, or expired.",
	}
}

func NewScopeMismatch(required string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusForbidden,
		Reason:   ScopeMismatch,
		Message:  fmt.Sprintf("API key lacks required scope %s.", required),
	}
}

func NewDomainTaken(domain string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusConflict,
		Reason:   DomainTaken,
		Message:  fmt.Sprintf("Domain %s is already in use.", domain),
	}
}

func NewTooManyRequests(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusTooManyRequests,
		Reason:   TooManyRequests,
		Message:  message,
	}
}

func NewNotFoundWithMessage(message string) *ApiError {
	return &ApiError{
		HttpCode: http.StatusNotFound,
		Reason:   NotFound,
		Message:  message,
	}
}

// NewNotFound builds a not-found error for a named resource kind. Ownership
// failures use the same constructor so foreign resources are indistinguishable
// from absent ones.
func NewNotFound(kind, name string) *ApiError {
	reason := NotFound
	switch kind {
	case "environment":
		reason = EnvironmentNotFound
	case "deployment":
		reason = DeploymentNotFound
	case "job":
		reason = JobNotFound
	}
	return &ApiError{
		HttpCode: http.StatusNotFound,
		Reason:   reason,
		Message:  fmt.Sprintf("%s %q not found", kind, name),
	}
}
