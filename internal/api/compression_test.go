// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompression(t *testing.T) {
	body := `{"success":true}`
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))

	tests := []struct {
		name     string
		headers  map[string]string
		wantGzip bool
	}{
		{"gzip accepted", map[string]string{"Accept-Encoding": "gzip, deflate"}, true},
		{"no accept encoding", nil, false},
		{"websocket upgrade", map[string]string{"Accept-Encoding": "gzip", "Upgrade": "websocket"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/threats", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}

			var r io.Reader = rec.Body
			if gotGzip {
				zr, err := gzip.NewReader(rec.Body)
				if err != nil {
					t.Fatal(err)
				}
				r = zr
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != body {
				t.Errorf("body = %q, want %q", got, body)
			}
		})
	}
}

func TestGzipResponseWriter_StatusOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &gzipResponseWriter{ResponseWriter: rec, gz: io.Discard}
	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)
	if rec.Code != http.StatusTeapot {
		t.Errorf("code = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
