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

package pkghttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gcs-uploader/gcs-uploader/internal/logging"

	"github.com/sirupsen/logrus"
)

// RespondJSONBytes writes a pre-marshaled JSON payload. Content-Length
// is the byte length of the payload, not the rune count.
func RespondJSONBytes(w http.ResponseWriter, r *http.Request, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	writeBody(w, r, body)
}

// RespondErrorJSON writes the edge error payload. The connection is
// closed so a client mid-way through streaming a body does not keep
// pushing bytes nobody reads.
func RespondErrorJSON(w http.ResponseWriter, r *http.Request, statusCode int, requestID, desc string) {
	body, err := json.Marshal(map[string]string{
		"request_id": requestID,
		"desc":       desc,
	})
	if err != nil {
		logging.FromRequest(r).WithError(err).Error("error marshaling error response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(statusCode)
	writeBody(w, r, body)
}

func writeBody(w http.ResponseWriter, r *http.Request, body []byte) {
	if n, err := w.Write(body); err != nil {
		logging.
			FromRequest(r).
			WithError(err).
			Error("error writing response")
	} else if payloadLen := len(body); n < payloadLen {
		logging.
			FromRequest(r).
			WithFields(logrus.Fields{
				"bytes_written":  n,
				"bytes_expected": payloadLen,
			}).
			Error("less response bytes written than expected")
	}
}
