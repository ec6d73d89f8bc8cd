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

package tokens

import (
	"fmt"
	"time"

	"github.com/gcs-uploader/gcs-uploader/internal/serviceaccount"

	jwt "github.com/golang-jwt/jwt/v5"
)

// maxAssertionValidity is the longest lifetime Google accepts for a
// service-account JWT bearer assertion.
const maxAssertionValidity = time.Hour

// BuildAssertion signs the standard Google service-account JWT bearer
// assertion: RS256 over the base64url header and claims, with the
// account's PEM private key. Validity longer than one hour is capped.
func BuildAssertion(acc *serviceaccount.Account, scope string, validity time.Duration) (string, error) {
	if validity > maxAssertionValidity {
		validity = maxAssertionValidity
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(acc.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("error parsing service account private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   acc.ClientEmail,
		"scope": scope,
		"aud":   acc.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(validity).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("error signing jwt assertion: %w", err)
	}
	return assertion, nil
}
