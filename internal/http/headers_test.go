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

package pkghttp_test

import (
	"net/http"
	"testing"

	pkghttp "github.com/gcs-uploader/gcs-uploader/internal/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentLength(t *testing.T) {
	headers := http.Header{}
	n, err := pkghttp.ContentLength(headers)
	require.NoError(t, err)
	assert.Nil(t, n)

	headers.Set("Content-Length", "1234")
	n, err = pkghttp.ContentLength(headers)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(1234), *n)

	headers.Set("Content-Length", "not a number")
	_, err = pkghttp.ContentLength(headers)
	require.Error(t, err)

	headers.Set("Content-Length", "-5")
	_, err = pkghttp.ContentLength(headers)
	require.Error(t, err)
}

func TestContentType(t *testing.T) {
	headers := http.Header{}
	mediaType, _, err := pkghttp.ContentType(headers)
	require.NoError(t, err)
	assert.Empty(t, mediaType)

	headers.Set("Content-Type", "text/html; charset=utf-8")
	mediaType, params, err := pkghttp.ContentType(headers)
	require.NoError(t, err)
	assert.Equal(t, "text/html", mediaType)
	assert.Equal(t, "utf-8", params["charset"])

	headers.Set("Content-Type", "text/html;;bad==")
	_, _, err = pkghttp.ContentType(headers)
	require.Error(t, err)
}

func TestStrHeader(t *testing.T) {
	headers := http.Header{}

	_, ok, err := pkghttp.StrHeader(headers, "X-Api-Token")
	require.NoError(t, err)
	assert.False(t, ok)

	headers.Set("X-Api-Token", "token-a")
	v, ok, err := pkghttp.StrHeader(headers, "x-api-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-a", v)

	headers.Set("X-Api-Token", "\xff\xfe")
	_, _, err = pkghttp.StrHeader(headers, "X-Api-Token")
	require.Error(t, err)

	_, err = pkghttp.RequiredStrHeader(headers, "X-Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
