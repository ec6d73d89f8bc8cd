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

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "upload_gateway"

var processStartTime = time.Now()

func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())
	return r
}

func HandlerFor(registry *prometheus.Registry, l promhttp.Logger) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:         l,
		ProcessStartTime: processStartTime,
	})
}

func NewTotalRequests() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "total_http_requests",
		Help:      "Total HTTP requests count.",
	})
}

func NewReturnCodes() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_return_codes",
		Help:      "Return codes for all HTTP requests.",
	}, []string{"api_path", "method", "status_code"})
}

func NewResponseTimeSeconds() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_response_time_seconds",
		Help:      "HTTP response times.",
		Buckets: []float64{
			0.0005, 0.0008, 0.00085, 0.0009, 0.00095, 0.001,
			0.00105, 0.0011, 0.00115, 0.0012, 0.0015,
			0.002, 0.003, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
			1.5, 2.0, 2.5, 3.0, 5.0, 6.0, 8.0, 10.0,
		},
	}, []string{"api_path", "method"})
}

func NewTotalBytesUploaded() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "total_bytes_uploaded",
		Help:      "Total bytes uploaded to google storage.",
	})
}

func NewBytesUploadedSize() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "total_bytes_uploaded_size",
		Help:      "Google storage upload size histogram.",
		Buckets:   append([]float64{0}, prometheus.ExponentialBuckets(1, 1024, 6)...),
	}, []string{"success"})
}
