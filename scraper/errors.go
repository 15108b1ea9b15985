package scraper

import (
	"errors"
	"fmt"
)

// ErrNetwork indicates a failed fetch: a transport error or a non-success
// HTTP status.
type ErrNetwork struct {
	URL string
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Errorf("fetch %s: %w", e.URL, e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrParse indicates an expected element was missing from a fetched page.
type ErrParse struct {
	URL string
	Err error
}

func (e ErrParse) Error() string {
	return fmt.Errorf("parse %s: %w", e.URL, e.Err).Error()
}

func (e ErrParse) Unwrap() error {
	return e.Err
}

// ErrRepeatedPage indicates a listing page served the same body as an
// earlier one, which means the pagination is looping.
type ErrRepeatedPage struct {
	URL string
}

func (e ErrRepeatedPage) Error() string {
	return fmt.Sprintf("repeated page content at %s", e.URL)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var parse ErrParse
	if errors.As(err, &parse) {
		return "parse"
	}
	var repeated ErrRepeatedPage
	if errors.As(err, &repeated) {
		return "repeated_page"
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		return "network"
	}
	return "other"
}
