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

// Package cachetokens caches access tokens from a source provider and
// pre-refreshes them in the background shortly before expiry. At most
// one refresh is in flight per provider at any time.
package cachetokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gcs-uploader/gcs-uploader/internal/logging"
	"github.com/gcs-uploader/gcs-uploader/internal/tokens"

	"golang.org/x/oauth2"
)

type (
	Provider struct {
		opts      ProviderOptions
		ctx       context.Context
		cancelCtx context.CancelFunc
		wg        sync.WaitGroup

		// mu guards token and is always acquired before refreshMu.
		mu    sync.Mutex
		token *oauth2.Token

		// refreshMu guards inflight. A non-nil inflight is a buffered
		// channel the background refresh publishes exactly one result to.
		refreshMu sync.Mutex
		inflight  chan refreshResult
	}

	ProviderOptions struct {
		Source tokens.Provider
	}

	refreshResult struct {
		token *oauth2.Token
		err   error
	}
)

const (
	// below syncRefreshWindow the cached token is too close to expiry
	// to be handed out, the caller blocks on a refresh.
	syncRefreshWindow = 10 * time.Second

	// below backgroundRefreshWindow the cached token is still served
	// but a background refresh is started.
	backgroundRefreshWindow = 60 * time.Second

	maxRefreshAttempts = 10
)

func NewProvider(ctx context.Context, opts ProviderOptions) *Provider {
	newCtxWithLogger := logging.IntoContext(context.Background(), logging.FromContext(ctx))
	ctx, cancel := context.WithCancel(newCtxWithLogger)
	return &Provider{
		opts:      opts,
		ctx:       ctx,
		cancelCtx: cancel,
	}
}

func (p *Provider) Close() error {
	p.cancelCtx()
	p.wg.Wait()
	return nil
}

// Token returns a cached access token, refreshing it when it is close
// to expiry. Holding mu for the whole call is what collapses concurrent
// refreshes into one upstream request.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	l := logging.FromContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		if p.token == nil {
			token, err := p.opts.Source.Token(ctx)
			if err != nil {
				l.WithError(err).Warnf("token refresh attempt %d failed", attempt)
				continue
			}
			p.token = token
			continue
		}

		lifeLeft := time.Until(p.token.Expiry)
		switch {
		case lifeLeft >= backgroundRefreshWindow:
			return p.token, nil

		case lifeLeft >= syncRefreshWindow:
			// still valid for a while, serve it and refresh behind
			// the caller's back
			p.startBackgroundRefresh()
			return p.token, nil

		default:
			token, err := p.joinOrRefresh(ctx)
			if err != nil {
				l.WithError(err).Warnf("token refresh attempt %d failed", attempt)
				continue
			}
			p.token = token
		}
	}

	p.token = nil
	return nil, fmt.Errorf("no valid token received after %d attempts", maxRefreshAttempts)
}

func (p *Provider) startBackgroundRefresh() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if p.inflight != nil {
		return
	}
	ch := make(chan refreshResult, 1)
	p.inflight = ch

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		token, err := p.opts.Source.Token(p.ctx)
		ch <- refreshResult{token, err}
	}()
}

// joinOrRefresh waits for the in-flight background refresh if there is
// one, otherwise performs a synchronous refresh.
func (p *Provider) joinOrRefresh(ctx context.Context) (*oauth2.Token, error) {
	p.refreshMu.Lock()
	ch := p.inflight
	p.inflight = nil
	p.refreshMu.Unlock()

	if ch == nil {
		return p.opts.Source.Token(ctx)
	}

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
