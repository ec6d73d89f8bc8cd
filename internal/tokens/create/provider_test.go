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

package createtokens_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gcs-uploader/gcs-uploader/internal/serviceaccount"
	createtokens "github.com/gcs-uploader/gcs-uploader/internal/tokens/create"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T, tokenURI string) (*serviceaccount.Account, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return &serviceaccount.Account{
		ClientEmail: "uploader@test-project.iam.gserviceaccount.com",
		TokenURI:    tokenURI,
		PrivateKey:  string(keyPEM),
	}, key
}

func TestToken(t *testing.T) {
	var key *rsa.PrivateKey
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(token *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		require.NoError(t, err)
		assert.Equal(t, "uploader@test-project.iam.gserviceaccount.com", claims["iss"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "test-access-token", "expires_in": 3600, "token_type": "Bearer"}`))
	}))
	defer tokenServer.Close()

	var account *serviceaccount.Account
	account, key = newTestAccount(t, tokenServer.URL)
	provider := createtokens.NewProvider(createtokens.ProviderOptions{
		HTTPClient: tokenServer.Client(),
		Account:    account,
		Scope:      "https://www.googleapis.com/auth/devstorage.read_write",
	})

	token, err := provider.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test-access-token", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiry, time.Minute)
}

func TestTokenErrorStatus(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer tokenServer.Close()

	account, _ := newTestAccount(t, tokenServer.URL)
	provider := createtokens.NewProvider(createtokens.ProviderOptions{
		HTTPClient: tokenServer.Client(),
		Account:    account,
		Scope:      "scope",
	})

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenUnexpectedContentType(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer tokenServer.Close()

	account, _ := newTestAccount(t, tokenServer.URL)
	provider := createtokens.NewProvider(createtokens.ProviderOptions{
		HTTPClient: tokenServer.Client(),
		Account:    account,
		Scope:      "scope",
	})

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestTokenEmptyAccessToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer tokenServer.Close()

	account, _ := newTestAccount(t, tokenServer.URL)
	provider := createtokens.NewProvider(createtokens.ProviderOptions{
		HTTPClient: tokenServer.Client(),
		Account:    account,
		Scope:      "scope",
	})

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty access token")
}
