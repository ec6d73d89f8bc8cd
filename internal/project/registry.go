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

package project

import "fmt"

// Registry resolves API tokens to projects. It is built once at startup
// and read-only afterwards.
type Registry struct {
	byToken map[string]*Project
}

func NewRegistry(projects ...*Project) (*Registry, error) {
	byToken := make(map[string]*Project, len(projects))
	for _, p := range projects {
		if _, ok := byToken[p.APIToken()]; ok {
			return nil, fmt.Errorf("duplicate api token across projects")
		}
		byToken[p.APIToken()] = p
	}
	return &Registry{byToken}, nil
}

func (r *Registry) ByToken(token string) (*Project, bool) {
	p, ok := r.byToken[token]
	if !ok || !p.CheckToken(token) {
		return nil, false
	}
	return p, true
}
