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

package slack

import (
	"bytes"
	"context"
	"net/http"

	slackapi "github.com/slack-go/slack"
)

// Client adapts the slack-go Web API client to the narrow API surface
// the notifier needs.
type Client struct {
	api *slackapi.Client
}

func NewClient(token string, httpClient *http.Client) *Client {
	return &Client{slackapi.New(token, slackapi.OptionHTTPClient(httpClient))}
}

func (c *Client) PostMessage(ctx context.Context, channel, text string) (string, error) {
	// escape=false keeps the <url|link> markup intact
	_, ts, err := c.api.PostMessageContext(ctx, channel, slackapi.MsgOptionText(text, false))
	return ts, err
}

func (c *Client) UploadPNG(ctx context.Context, channel, threadTS, filename string, png []byte) error {
	_, err := c.api.UploadFileV2Context(ctx, slackapi.UploadFileV2Parameters{
		Reader:          bytes.NewReader(png),
		Filename:        filename,
		FileSize:        len(png),
		Channel:         channel,
		ThreadTimestamp: threadTS,
	})
	return err
}
