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

package pkghttp

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"unicode/utf8"
)

// ContentLength parses the Content-Length header. A missing header
// returns (nil, nil), a non-numeric value is an error.
func ContentLength(headers http.Header) (*int64, error) {
	v := headers.Get("Content-Length")
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid Content-Length value %q", v)
	}
	return &n, nil
}

// ContentType parses the Content-Type header into its media type and
// parameters. A missing header returns an empty media type and no error.
func ContentType(headers http.Header) (string, map[string]string, error) {
	v := headers.Get("Content-Type")
	if v == "" {
		return "", nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(v)
	if err != nil {
		return "", nil, fmt.Errorf("error parsing Content-Type value %q: %w", v, err)
	}
	return mediaType, params, nil
}

// StrHeader returns the header value as a string. A missing header
// returns ("", false, nil), a non-UTF-8 value is an error.
func StrHeader(headers http.Header, key string) (string, bool, error) {
	vs, ok := headers[http.CanonicalHeaderKey(key)]
	if !ok || len(vs) == 0 {
		return "", false, nil
	}
	v := vs[0]
	if !utf8.ValidString(v) {
		return "", false, fmt.Errorf("header %s is not valid utf-8", key)
	}
	return v, true, nil
}

func RequiredStrHeader(headers http.Header, key string) (string, error) {
	v, ok, err := StrHeader(headers, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("header %s is missing", key)
	}
	return v, nil
}
