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

// Package serviceaccount parses Google service-account credentials in
// the standard JSON key file format.
package serviceaccount

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// Account is the subset of the key file the token flow needs. Loaded
// once per tenant at startup, immutable thereafter.
type Account struct {
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
	PrivateKey  string `json:"private_key"`
}

func Load(path string) (*Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading service account file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Account, error) {
	var acc Account
	if err := json.Unmarshal(b, &acc); err != nil {
		return nil, fmt.Errorf("error parsing service account json: %w", err)
	}
	if acc.ClientEmail == "" {
		return nil, fmt.Errorf("service account is missing client_email")
	}
	if acc.PrivateKey == "" {
		return nil, fmt.Errorf("service account is missing private_key")
	}
	if acc.TokenURI == "" {
		acc.TokenURI = "https://oauth2.googleapis.com/token"
	}
	if _, err := url.Parse(acc.TokenURI); err != nil {
		return nil, fmt.Errorf("error parsing service account token_uri: %w", err)
	}
	return &acc, nil
}
