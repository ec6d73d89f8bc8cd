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

// Package server exposes the upload gateway over HTTP: the upload
// endpoint plus health and Prometheus scraping endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkghttp "github.com/gcs-uploader/gcs-uploader/internal/http"
	"github.com/gcs-uploader/gcs-uploader/internal/httperr"
	"github.com/gcs-uploader/gcs-uploader/internal/logging"
	"github.com/gcs-uploader/gcs-uploader/internal/metrics"
	"github.com/gcs-uploader/gcs-uploader/internal/project"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type (
	Server struct {
		opts       ServerOptions
		httpServer *http.Server
		metrics    serverMetrics
	}

	ServerOptions struct {
		ServerAddr      string
		Projects        *project.Registry
		MetricsRegistry *prometheus.Registry
	}

	serverMetrics struct {
		totalRequests prometheus.Counter
		returnCodes   *prometheus.CounterVec
		responseTime  *prometheus.HistogramVec
	}

	uploadResponse struct {
		Link      string `json:"link"`
		RequestID string `json:"request_id"`
		SlackSent bool   `json:"slack_sent"`
	}
)

const (
	uploadFileAPI        = "/upload_file"
	healthAPI            = "/health"
	prometheusMetricsAPI = "/prometheus_metrics"

	apiTokenHeader = "X-Api-Token"
)

func New(ctx context.Context, opts ServerOptions) *Server {
	totalRequests := metrics.NewTotalRequests()
	opts.MetricsRegistry.MustRegister(totalRequests)
	returnCodes := metrics.NewReturnCodes()
	opts.MetricsRegistry.MustRegister(returnCodes)
	responseTime := metrics.NewResponseTimeSeconds()
	opts.MetricsRegistry.MustRegister(responseTime)

	// create server
	l := logging.FromContext(ctx).WithField("server_addr", opts.ServerAddr)
	metricsHandler := metrics.HandlerFor(opts.MetricsRegistry, l)
	s := &Server{
		opts: opts,
		metrics: serverMetrics{
			totalRequests: totalRequests,
			returnCodes:   returnCodes,
			responseTime:  responseTime,
		},
	}
	s.httpServer = &http.Server{
		Addr: opts.ServerAddr,
		BaseContext: func(net.Listener) context.Context {
			return logging.IntoContext(context.Background(), l)
		},
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t0 := time.Now()
			requestID := newRequestID()
			apiPath := trimTrailingSlashes(r.URL.Path)

			statusRecorder := &pkghttp.StatusRecorder{ResponseWriter: w}
			w = statusRecorder
			r = logging.IntoRequest(r, logging.FromRequest(r).WithField("http_request", logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			}))

			serviceEndpoint := false
			switch {
			case r.Method == http.MethodGet && apiPath == healthAPI:
				serviceEndpoint = true
				w.WriteHeader(http.StatusOK)
			case r.Method == http.MethodGet && apiPath == prometheusMetricsAPI:
				serviceEndpoint = true
				metricsHandler.ServeHTTP(w, r)
			case r.Method == http.MethodPost && apiPath == uploadFileAPI:
				s.uploadFile(w, r, requestID)
			default:
				pkghttp.RespondErrorJSON(w, r, http.StatusBadRequest, requestID, "Wrong path or method")
			}

			// the scraping and health endpoints do not count as traffic
			if serviceEndpoint {
				return
			}
			statusCode := statusRecorder.StatusCode()
			s.metrics.totalRequests.Inc()
			s.metrics.returnCodes.WithLabelValues(apiPath, r.Method, fmt.Sprint(statusCode)).Inc()
			s.metrics.responseTime.WithLabelValues(apiPath, r.Method).Observe(time.Since(t0).Seconds())

			logging.
				FromRequest(r).
				WithFields(logrus.Fields{
					"http_response": logrus.Fields{
						"status":         statusCode,
						"latency_millis": time.Since(t0).Milliseconds(),
					},
				}).
				Info("request")
		}),
	}

	// start server
	go func() {
		l.Info("starting server...")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Fatal("error listening and serving server")
		}
	}()

	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP drives the server handler directly, bypassing the listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request, requestID string) {
	apiToken, err := pkghttp.RequiredStrHeader(r.Header, apiTokenHeader)
	if err != nil {
		pkghttp.RespondErrorJSON(w, r, http.StatusUnauthorized, requestID, "Api token parsing failed")
		return
	}
	proj, ok := s.opts.Projects.ByToken(apiToken)
	if !ok {
		pkghttp.RespondErrorJSON(w, r, http.StatusBadRequest, requestID, "Requested project is missing")
		return
	}

	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		pkghttp.RespondErrorJSON(w, r, http.StatusBadRequest, requestID, "Query parsing error")
		return
	}

	contentLength, err := pkghttp.ContentLength(r.Header)
	if err != nil || contentLength == nil {
		pkghttp.RespondErrorJSON(w, r, http.StatusLengthRequired, requestID,
			"Content-Length header is missing or invalid")
		return
	}

	result, err := proj.Upload(r.Context(), r.Header, query, r.Body)
	if err != nil {
		logging.FromRequest(r).WithError(err).Error("error uploading file")
		status, desc := httperr.StatusAndDesc(err)
		pkghttp.RespondErrorJSON(w, r, status, requestID, desc)
		return
	}

	body, err := json.Marshal(uploadResponse{
		Link:      result.Link,
		RequestID: requestID,
		SlackSent: result.SlackSent,
	})
	if err != nil {
		logging.FromRequest(r).WithError(err).Error("error marshaling upload response")
		pkghttp.RespondErrorJSON(w, r, http.StatusInternalServerError, requestID, "Internal error")
		return
	}
	pkghttp.RespondJSONBytes(w, r, http.StatusOK, body)
}

// newRequestID mints a UUIDv4 rendered as 32 hex chars without dashes.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// trimTrailingSlashes normalizes the path so /upload_file/ and
// /upload_file route the same. The root path stays as-is.
func trimTrailingSlashes(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}
