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

// Package gcs streams request bodies into a Google Cloud Storage bucket
// through the JSON API media upload endpoint.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gcs-uploader/gcs-uploader/internal/httperr"
	"github.com/gcs-uploader/gcs-uploader/internal/logging"
	"github.com/gcs-uploader/gcs-uploader/internal/tokens"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type (
	Uploader struct {
		opts UploaderOptions
	}

	UploaderOptions struct {
		HTTPClient *http.Client
		Tokens     tokens.Provider
		Bucket     string

		// Endpoint overrides the Google Storage upload endpoint.
		Endpoint string

		// optional, upload byte accounting
		BytesUploaded     prometheus.Counter
		BytesUploadedSize *prometheus.HistogramVec
	}

	// Object is the subset of object metadata requested through the
	// fields query parameter.
	Object struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Bucket    string `json:"bucket"`
		SelfLink  string `json:"selfLink"`
		MD5Hash   string `json:"md5Hash"`
		MediaLink string `json:"mediaLink"`
	}
)

const (
	uploadEndpoint = "https://storage.googleapis.com/upload/storage/v1"
	downloadHost   = "https://storage.cloud.google.com"

	objectFields = "id,name,bucket,selfLink,md5Hash,mediaLink"

	userAgent = "gcs-uploader/1.0"

	maxErrorBodySize = 64 << 10
)

func NewUploader(opts UploaderOptions) *Uploader {
	if opts.Endpoint == "" {
		opts.Endpoint = uploadEndpoint
	}
	return &Uploader{opts}
}

// Upload streams body into the bucket under the given object name and
// returns the browser download link. The byte count observed by the
// metrics is what actually went over the wire, i.e. after compression.
func (u *Uploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	token, err := u.opts.Tokens.Token(ctx)
	if err != nil {
		return "", httperr.Wrap(err, http.StatusUnauthorized, "Google authentication failed")
	}

	uploadURL := fmt.Sprintf("%s/b/%s/o?name=%s&uploadType=media&fields=%s",
		u.opts.Endpoint, url.PathEscape(u.opts.Bucket), url.QueryEscape(name), url.QueryEscape(objectFields))

	counter := &countingReader{reader: body}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, counter)
	if err != nil {
		return "", httperr.Internal(err, "Google upload request failed")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.opts.HTTPClient.Do(req)
	if err != nil {
		u.observeBytes(counter.count(), false)
		return "", httperr.Internal(err, "Google upload request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.observeBytes(counter.count(), false)
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		desc := "Google error response"
		if excerpt := minifyJSON(b); excerpt != "" {
			desc += ": " + excerpt
		}
		return "", httperr.Internal(
			fmt.Errorf("google upload returned status %d", resp.StatusCode), desc)
	}
	u.observeBytes(counter.count(), true)

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", httperr.Internal(err, "Google response parsing failed")
	}
	if obj.Name == "" || obj.Bucket == "" {
		return "", httperr.Internal(
			fmt.Errorf("google response is missing name or bucket"),
			"Google response parsing failed")
	}
	logging.
		FromContext(ctx).
		WithFields(logrus.Fields{
			"object_id":      obj.ID,
			"object_md5":     obj.MD5Hash,
			"bytes_uploaded": counter.count(),
		}).
		Info("uploaded object to google storage")

	return downloadHost + "/" + obj.Bucket + "/" + obj.Name, nil
}

func (u *Uploader) observeBytes(n int64, ok bool) {
	if u.opts.BytesUploaded != nil {
		u.opts.BytesUploaded.Add(float64(n))
	}
	if u.opts.BytesUploadedSize != nil {
		success := "ok"
		if !ok {
			success = "fail"
		}
		u.opts.BytesUploadedSize.WithLabelValues(success).Observe(float64(n))
	}
}

// minifyJSON compacts an upstream error payload to a single line so it
// can be embedded in our own error description. Non-JSON UTF-8 payloads
// are passed through trimmed, anything else is dropped.
func minifyJSON(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return strings.TrimSpace(string(b))
	}
	return buf.String()
}

// countingReader counts bytes as the HTTP transport consumes them. The
// transport reads from a separate goroutine, hence the atomic.
type countingReader struct {
	reader io.Reader
	n      atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) count() int64 {
	return c.n.Load()
}
