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

package slack_test

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"sync"
	"testing"

	"github.com/gcs-uploader/gcs-uploader/internal/httperr"
	"github.com/gcs-uploader/gcs-uploader/internal/slack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	postedMessage struct {
		channel string
		text    string
	}

	uploadedFile struct {
		channel  string
		threadTS string
		filename string
		png      []byte
	}

	fakeAPI struct {
		mu       sync.Mutex
		messages []postedMessage
		uploads  []uploadedFile

		failChannel string
		failUpload  bool
	}
)

func (f *fakeAPI) PostMessage(ctx context.Context, channel, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == f.failChannel {
		return "", fmt.Errorf("channel_not_found")
	}
	f.messages = append(f.messages, postedMessage{channel, text})
	return fmt.Sprintf("171234.%04d", len(f.messages)), nil
}

func (f *fakeAPI) UploadPNG(ctx context.Context, channel, threadTS, filename string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return fmt.Errorf("not_allowed_token_type")
	}
	f.uploads = append(f.uploads, uploadedFile{channel, threadTS, filename, data})
	return nil
}

const testLink = "https://storage.cloud.google.com/test-bucket/file.txt.gz"

func TestNotify(t *testing.T) {
	api := &fakeAPI{}
	notifier := slack.NewNotifier(slack.NotifierOptions{
		API:     api,
		Targets: []string{"C123", "C456"},
	})

	require.NoError(t, notifier.Notify(context.Background(), testLink, nil))

	require.Len(t, api.messages, 2)
	channels := map[string]bool{}
	for _, msg := range api.messages {
		channels[msg.channel] = true
		assert.Equal(t, "Download file url: <"+testLink+"|link>", msg.text)
	}
	assert.True(t, channels["C123"])
	assert.True(t, channels["C456"])
	assert.Empty(t, api.uploads)
}

func TestNotifyTextBefore(t *testing.T) {
	for _, tc := range []struct {
		name              string
		defaultTextBefore string
		override          *string
		expectedText      string
	}{
		{
			name:         "fallback prefix",
			expectedText: "Download file url: <" + testLink + "|link>",
		},
		{
			name:              "configured prefix",
			defaultTextBefore: "New build: ",
			expectedText:      "New build: <" + testLink + "|link>",
		},
		{
			name:              "request override",
			defaultTextBefore: "New build: ",
			override:          strPtr("Hotfix! "),
			expectedText:      "Hotfix! <" + testLink + "|link>",
		},
		{
			name:              "empty override drops the prefix",
			defaultTextBefore: "New build: ",
			override:          strPtr(""),
			expectedText:      "<" + testLink + "|link>",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{}
			notifier := slack.NewNotifier(slack.NotifierOptions{
				API:               api,
				Targets:           []string{"C123"},
				DefaultTextBefore: tc.defaultTextBefore,
			})

			require.NoError(t, notifier.Notify(context.Background(), testLink, tc.override))
			require.Len(t, api.messages, 1)
			assert.Equal(t, tc.expectedText, api.messages[0].text)
		})
	}
}

func TestNotifyQRCode(t *testing.T) {
	api := &fakeAPI{}
	notifier := slack.NewNotifier(slack.NotifierOptions{
		API:     api,
		Targets: []string{"C123"},
		QRCode:  true,
	})

	require.NoError(t, notifier.Notify(context.Background(), testLink, nil))

	require.Len(t, api.messages, 1)
	require.Len(t, api.uploads, 1)

	upload := api.uploads[0]
	assert.Equal(t, "C123", upload.channel)
	assert.Equal(t, "qr_code.png", upload.filename)
	// the QR code goes into the thread of the link message
	assert.Equal(t, "171234.0001", upload.threadTS)

	img, err := png.Decode(bytes.NewReader(upload.png))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestNotifyQRCodeUploadError(t *testing.T) {
	api := &fakeAPI{failUpload: true}
	notifier := slack.NewNotifier(slack.NotifierOptions{
		API:     api,
		Targets: []string{"C123"},
		QRCode:  true,
	})

	err := notifier.Notify(context.Background(), testLink, nil)
	require.Error(t, err)

	status, desc := httperr.StatusAndDesc(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, desc, "Slack qr send error:")
	assert.Contains(t, desc, "not_allowed_token_type")
}

func TestNotifyFailsOnAnyChannelError(t *testing.T) {
	api := &fakeAPI{failChannel: "C456"}
	notifier := slack.NewNotifier(slack.NotifierOptions{
		API:     api,
		Targets: []string{"C123", "C456"},
	})

	err := notifier.Notify(context.Background(), testLink, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.Contains(t, err.Error(), "C456")
}

func strPtr(s string) *string { return &s }
