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

// Package upload chooses the destination object name for a request and
// optionally gzip-compresses the body in flight.
package upload

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkghttp "github.com/gcs-uploader/gcs-uploader/internal/http"
	"github.com/gcs-uploader/gcs-uploader/internal/httperr"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

const filenameHeader = "X-Filename"

// NameAndBody picks the final object name and body stream. An explicit
// filename (X-Filename header, then the filename query key) wins and
// disables compression, the caller knows the right extension and
// encoding better than we do. Otherwise the name is generated from the
// content type and text-like payloads are gzip-streamed.
func NameAndBody(headers http.Header, query url.Values, body io.ReadCloser) (string, io.ReadCloser, error) {
	name, ok, err := pkghttp.StrHeader(headers, filenameHeader)
	if err != nil {
		return "", nil, httperr.Wrap(err, http.StatusBadRequest, "Filename parsing failed")
	}
	if !ok {
		name = query.Get("filename")
		ok = name != ""
	}
	if ok {
		return name, body, nil
	}

	mediaType, _, err := pkghttp.ContentType(headers)
	if err != nil {
		return "", nil, httperr.Wrap(err, http.StatusBadRequest, "Content type parsing failed")
	}

	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return generatedName("txt.gz"), gzipBody(body), nil
	case mediaType == "application/json":
		return generatedName("json.gz"), gzipBody(body), nil
	case mediaType == "application/zip":
		// already compressed
		return generatedName("zip"), body, nil
	case mediaType == "application/gz":
		return generatedName("gz"), body, nil
	default:
		return generatedName("bin.gz"), gzipBody(body), nil
	}
}

// generatedName renders a random UUIDv4 as 32 lowercase hex chars
// without dashes plus the extension.
func generatedName(ext string) string {
	u := uuid.New()
	return hex.EncodeToString(u[:]) + "." + ext
}

// gzipBody compresses the body as it is consumed. The pipe gives true
// streaming semantics: the writer side blocks until the uploader reads,
// so back-pressure from the upstream socket propagates to the client
// read side and the full body is never buffered.
func gzipBody(body io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		defer body.Close()
		gw := gzip.NewWriter(pw)
		_, err := io.Copy(gw, body)
		if closeErr := gw.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()
	return pr
}
