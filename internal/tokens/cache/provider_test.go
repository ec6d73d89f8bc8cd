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

package cachetokens_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	cachetokens "github.com/gcs-uploader/gcs-uploader/internal/tokens/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type sourceResult struct {
	token *oauth2.Token
	err   error
}

// fakeSource replays a queue of results, repeating the last one forever.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	queue []sourceResult
}

func (f *fakeSource) Token(ctx context.Context) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	return res.token, res.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func tokenExpiringIn(d time.Duration) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: fmt.Sprintf("token-%s", d),
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(d),
	}
}

func TestTokenIsCachedWhileFresh(t *testing.T) {
	source := &fakeSource{queue: []sourceResult{{token: tokenExpiringIn(time.Hour)}}}
	provider := cachetokens.NewProvider(context.Background(), cachetokens.ProviderOptions{Source: source})
	defer provider.Close()

	first, err := provider.Token(context.Background())
	require.NoError(t, err)
	second, err := provider.Token(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, source.callCount())
}

func TestTokenRefreshesInBackgroundBeforeExpiry(t *testing.T) {
	source := &fakeSource{queue: []sourceResult{
		{token: tokenExpiringIn(30 * time.Second)},
		{token: tokenExpiringIn(time.Hour)},
	}}
	provider := cachetokens.NewProvider(context.Background(), cachetokens.ProviderOptions{Source: source})
	defer provider.Close()

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Until(token.Expiry), time.Minute)

	// the caller got the still-valid token, the refresh happens behind
	// its back
	require.Eventually(t, func() bool {
		return source.callCount() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestTokenRefreshesSynchronouslyWhenAboutToExpire(t *testing.T) {
	source := &fakeSource{queue: []sourceResult{
		{token: tokenExpiringIn(time.Second)},
		{token: tokenExpiringIn(time.Second)},
		{token: tokenExpiringIn(time.Hour)},
	}}
	provider := cachetokens.NewProvider(context.Background(), cachetokens.ProviderOptions{Source: source})
	defer provider.Close()

	token, err := provider.Token(context.Background())
	require.NoError(t, err)

	assert.Greater(t, time.Until(token.Expiry), 30*time.Minute)
	assert.Equal(t, 3, source.callCount())
}

func TestTokenGivesUpAfterRepeatedFailures(t *testing.T) {
	source := &fakeSource{queue: []sourceResult{{err: fmt.Errorf("upstream is down")}}}
	provider := cachetokens.NewProvider(context.Background(), cachetokens.ProviderOptions{Source: source})
	defer provider.Close()

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid token received after 10 attempts")
	assert.Equal(t, 10, source.callCount())

	// the cache is cleared, a healthy source recovers on the next call
	source.mu.Lock()
	source.queue = []sourceResult{{token: tokenExpiringIn(time.Hour)}}
	source.mu.Unlock()
	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, token)
}

func TestTokenCollapsesConcurrentCalls(t *testing.T) {
	source := &fakeSource{queue: []sourceResult{{token: tokenExpiringIn(time.Hour)}}}
	provider := cachetokens.NewProvider(context.Background(), cachetokens.ProviderOptions{Source: source})
	defer provider.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := provider.Token(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, token)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, source.callCount())
}
