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

// Package createtokens exchanges a signed JWT bearer assertion for a
// Google OAuth2 access token at the account's token endpoint.
package createtokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gcs-uploader/gcs-uploader/internal/serviceaccount"
	"github.com/gcs-uploader/gcs-uploader/internal/tokens"

	"golang.org/x/oauth2"
)

type (
	Provider struct {
		opts ProviderOptions
	}

	ProviderOptions struct {
		HTTPClient *http.Client
		Account    *serviceaccount.Account
		Scope      string
	}
)

const (
	grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// requestedValidity is what we ask Google for. The expires_in of
	// the response is authoritative.
	requestedValidity = 60 * time.Minute

	maxErrorBodySize = 64 << 10
)

func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{opts}
}

func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	assertion, err := tokens.BuildAssertion(p.opts.Account, p.opts.Scope, requestedValidity)
	if err != nil {
		return nil, fmt.Errorf("error building jwt assertion: %w", err)
	}

	form := url.Values{
		"grant_type": []string{grantType},
		"assertion":  []string{assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.Account.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, fmt.Errorf("token endpoint returned unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return nil, fmt.Errorf("error parsing token response: %w", err)
	}
	if tokenData.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned an empty access token")
	}

	return &oauth2.Token{
		AccessToken: tokenData.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(tokenData.ExpiresIn) * time.Second),
	}, nil
}
