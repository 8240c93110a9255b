package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAPI is returned when the counter API answers with a non-success
	// status or a payload that cannot be parsed.
	ErrAPI = errors.New("counter api error")
	// ErrNoDataFound means a series is empty or lacks a requested day.
	// It is usually transient: the API publishes yesterday's counts late.
	ErrNoDataFound = errors.New("no data found")
	// ErrDataMismatch means counter series cannot be combined date by date.
	ErrDataMismatch = errors.New("counter data mismatch")
	// ErrTemplate means a report template could not be fully resolved.
	ErrTemplate = errors.New("template error")
)

type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("counter api error (status %d)", e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 200)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
