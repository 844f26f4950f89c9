// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package apierr defines the error kinds shared by all components and their
// mapping onto HTTP statuses.
package apierr

import (
	"net/http"

	"github.com/zeebo/errs"
)

// Error classes for every kind the API can surface. Wrapping an error with
// one of these classes decides the status code and machine-readable code of
// the response envelope.
var (
	ErrBadRequest          = errs.Class("bad request")
	ErrUnauthenticated     = errs.Class("unauthenticated")
	ErrForbidden           = errs.Class("forbidden")
	ErrNotFound            = errs.Class("not found")
	ErrConflict            = errs.Class("conflict")
	ErrQuotaExceeded       = errs.Class("quota exceeded")
	ErrRateLimited         = errs.Class("rate limited")
	ErrUpstreamUnavailable = errs.Class("upstream unavailable")
)

// Code is the machine-readable code carried in the error envelope.
type Code string

// Codes for each error kind.
const (
	CodeBadRequest          Code = "bad_request"
	CodeUnauthenticated     Code = "unauthenticated"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeRateLimited         Code = "rate_limited"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeInternal            Code = "internal"
)

// Classify returns the HTTP status and envelope code for err. Unrecognized
// errors map to 500/internal.
func Classify(err error) (status int, code Code) {
	switch {
	case ErrBadRequest.Has(err):
		return http.StatusBadRequest, CodeBadRequest
	case ErrUnauthenticated.Has(err):
		return http.StatusUnauthorized, CodeUnauthenticated
	case ErrForbidden.Has(err):
		return http.StatusForbidden, CodeForbidden
	case ErrNotFound.Has(err):
		return http.StatusNotFound, CodeNotFound
	case ErrConflict.Has(err):
		return http.StatusConflict, CodeConflict
	case ErrQuotaExceeded.Has(err):
		return http.StatusTooManyRequests, CodeQuotaExceeded
	case ErrRateLimited.Has(err):
		return http.StatusTooManyRequests, CodeRateLimited
	case ErrUpstreamUnavailable.Has(err):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Retryable reports whether the caller may retry the request unchanged.
func Retryable(err error) bool {
	return ErrUpstreamUnavailable.Has(err) || ErrRateLimited.Has(err)
}
