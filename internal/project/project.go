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

// Package project ties one API token to its upload destination and
// optional Slack mirroring, and runs the upload flow for a request.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gcs-uploader/gcs-uploader/internal/httperr"
	"github.com/gcs-uploader/gcs-uploader/internal/upload"
)

type (
	Project struct {
		opts ProjectOptions
	}

	ProjectOptions struct {
		APIToken string
		Uploader Uploader

		// Notifier is nil when the project has no Slack configuration.
		Notifier Notifier
	}

	// Uploader stores a body under an object name and returns the
	// download link.
	Uploader interface {
		Upload(ctx context.Context, name string, body io.Reader) (string, error)
	}

	// Notifier mirrors a download link into the configured channels.
	Notifier interface {
		Notify(ctx context.Context, link string, textBefore *string) error
	}

	Result struct {
		Link      string
		SlackSent bool
	}
)

func New(opts ProjectOptions) *Project {
	return &Project{opts}
}

func (p *Project) APIToken() string {
	return p.opts.APIToken
}

// CheckToken reports whether the given API token matches this project.
func (p *Project) CheckToken(token string) bool {
	return token == p.opts.APIToken
}

// Upload runs the full flow for one request: parse the Slack query
// knobs, pick name and body encoding, stream to Google Storage, then
// optionally mirror the link to Slack.
//
// A slack_send request against a project without Slack configuration
// is rejected before the body is consumed, so the client learns about
// the misconfiguration without paying for the transfer.
func (p *Project) Upload(ctx context.Context, headers http.Header, query url.Values,
	body io.ReadCloser) (*Result, error) {

	sendToSlack, err := boolQueryParam(query, "slack_send")
	if err != nil {
		return nil, httperr.Wrap(err, http.StatusBadRequest, "Query parsing error")
	}
	var textBefore *string
	if vs, ok := query["slack_text_prefix"]; ok && len(vs) > 0 {
		textBefore = &vs[0]
	}

	if sendToSlack && p.opts.Notifier == nil {
		return nil, httperr.BadRequest("Slack posting is not configured for this application")
	}

	name, stream, err := upload.NameAndBody(headers, query, body)
	if err != nil {
		return nil, err
	}
	// the stream may be a compressing pipe whose writer goroutine blocks
	// until the reader side is drained or closed; close it on every exit
	// path so an aborted upload does not strand the goroutine
	defer stream.Close()

	link, err := p.opts.Uploader.Upload(ctx, name, stream)
	if err != nil {
		return nil, err
	}

	result := &Result{Link: link}
	if sendToSlack {
		if err := p.opts.Notifier.Notify(ctx, link, textBefore); err != nil {
			// errors already carrying a status (e.g. the qr code path)
			// keep their own description
			var httpErr *httperr.Error
			if errors.As(err, &httpErr) {
				return nil, err
			}
			return nil, httperr.Wrap(err, http.StatusInternalServerError,
				fmt.Sprintf("Slack error: %v", err))
		}
		result.SlackSent = true
	}
	return result, nil
}

func boolQueryParam(query url.Values, key string) (bool, error) {
	v := query.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean query param %s=%q", key, v)
	}
	return b, nil
}
