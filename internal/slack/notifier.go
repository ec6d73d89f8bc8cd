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

// Package slack mirrors download links into Slack channels, optionally
// attaching a QR code of the link in the message thread.
package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gcs-uploader/gcs-uploader/internal/httperr"
	"github.com/gcs-uploader/gcs-uploader/internal/logging"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"
)

type (
	Notifier struct {
		opts NotifierOptions
	}

	NotifierOptions struct {
		API               API
		Targets           []string
		QRCode            bool
		DefaultTextBefore string
	}

	// API is the part of the Slack Web API the notifier needs.
	API interface {
		// PostMessage posts text to a channel and returns the message
		// timestamp, which doubles as the thread handle.
		PostMessage(ctx context.Context, channel, text string) (string, error)

		// UploadPNG uploads a PNG into the thread rooted at threadTS.
		UploadPNG(ctx context.Context, channel, threadTS, filename string, png []byte) error
	}
)

const (
	fallbackTextBefore = "Download file url: "

	qrCodeSize     = 256
	qrCodeFilename = "qr_code.png"
)

func NewNotifier(opts NotifierOptions) *Notifier {
	return &Notifier{opts}
}

// Notify posts the link to every configured channel concurrently and
// fails fast on the first error. textBefore overrides the configured
// message prefix when non-nil, empty string included.
func (n *Notifier) Notify(ctx context.Context, link string, textBefore *string) error {
	prefix := n.opts.DefaultTextBefore
	if prefix == "" {
		prefix = fallbackTextBefore
	}
	if textBefore != nil {
		prefix = *textBefore
	}
	text := fmt.Sprintf("%s<%s|link>", prefix, link)

	var png []byte
	if n.opts.QRCode {
		var err error
		png, err = qrcode.Encode(link, qrcode.Medium, qrCodeSize)
		if err != nil {
			return httperr.Wrap(err, http.StatusInternalServerError,
				fmt.Sprintf("Slack qr send error: %v", err))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, target := range n.opts.Targets {
		g.Go(func() error {
			ts, err := n.opts.API.PostMessage(ctx, target, text)
			if err != nil {
				return fmt.Errorf("error posting message to channel %s: %w", target, err)
			}
			if logging.Debug() {
				logging.
					FromContext(ctx).
					WithField("slack_channel", target).
					Debug("posted link to slack channel")
			}

			if png == nil {
				return nil
			}
			if err := n.opts.API.UploadPNG(ctx, target, ts, qrCodeFilename, png); err != nil {
				return httperr.Wrap(err, http.StatusInternalServerError,
					fmt.Sprintf("Slack qr send error: error uploading qr code to channel %s: %v", target, err))
			}
			return nil
		})
	}
	return g.Wait()
}
