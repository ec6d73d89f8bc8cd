// MIT License
//
// Copyright (c) 2021 The gcs-uploader Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package httperr carries an HTTP status code and a client-facing
// description alongside the underlying cause. Values of *Error flow
// upwards through the upload pipeline and are materialized as JSON
// error responses at the server edge.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Desc   string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Desc, e.Cause)
	}
	return e.Desc
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(status int, desc string) *Error {
	return &Error{Status: status, Desc: desc}
}

// Wrap attaches a status and client-facing description to an underlying
// error. A nil err still produces a valid *Error.
func Wrap(err error, status int, desc string) *Error {
	return &Error{Status: status, Desc: desc, Cause: err}
}

func BadRequest(desc string) *Error {
	return New(http.StatusBadRequest, desc)
}

func Unauthorized(desc string) *Error {
	return New(http.StatusUnauthorized, desc)
}

func Internal(err error, desc string) *Error {
	return Wrap(err, http.StatusInternalServerError, desc)
}

// StatusAndDesc extracts the edge response for an arbitrary error.
// Errors that do not carry an *Error anywhere in their chain are
// reported as opaque internal errors, the cause stays in the logs only.
func StatusAndDesc(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, e.Desc
	}
	return http.StatusInternalServerError, "Internal error"
}
