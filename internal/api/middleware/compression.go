// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type encoding string

const (
	encodingNone   encoding = ""
	encodingGzip   encoding = "gzip"
	encodingBrotli encoding = "br"
	encodingZstd   encoding = "zstd"
)

// negotiate picks zstd, then brotli, then gzip among the encodings the client accepts.
func negotiate(acceptEncoding string) encoding {
	accepted := map[encoding]bool{}
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 {
			continue
		}
		if name == "*" {
			accepted[encodingZstd], accepted[encodingBrotli], accepted[encodingGzip] = true, true, true
			continue
		}
		accepted[encoding(name)] = true
	}

	for _, enc := range []encoding{encodingZstd, encodingBrotli, encodingGzip} {
		if accepted[enc] {
			return enc
		}
	}
	return encodingNone
}

type compressWriter struct {
	http.ResponseWriter
	enc     encoding
	minSize int
	level   int

	status  int
	buf     []byte
	decided bool
	out     io.WriteCloser
}

func (w *compressWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.decided {
		if w.out != nil {
			return w.out.Write(p)
		}
		return w.ResponseWriter.Write(p)
	}

	w.buf = append(w.buf, p...)
	if len(w.buf) < w.minSize {
		return len(p), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(p), nil
}

// decide commits headers and flushes the buffered prefix. compress is false
// when the body ended below the threshold.
func (w *compressWriter) decide(compress bool) error {
	w.decided = true
	if compress && compressible(w.Header().Get("Content-Type")) && w.Header().Get("Content-Encoding") == "" {
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", string(w.enc))
		switch w.enc {
		case encodingZstd:
			enc, err := zstd.NewWriter(w.ResponseWriter, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(w.level)))
			if err != nil {
				return err
			}
			w.out = enc
		case encodingBrotli:
			w.out = brotli.NewWriterLevel(w.ResponseWriter, w.level)
		default:
			gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
			if err != nil {
				return err
			}
			w.out = gz
		}
	}

	w.ResponseWriter.WriteHeader(w.status)
	if len(w.buf) == 0 {
		return nil
	}
	var err error
	if w.out != nil {
		_, err = w.out.Write(w.buf)
	} else {
		_, err = w.ResponseWriter.Write(w.buf)
	}
	w.buf = nil
	return err
}

func (w *compressWriter) finish() error {
	if !w.decided {
		if w.status == 0 {
			w.status = http.StatusOK
		}
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if w.out != nil {
		return w.out.Close()
	}
	return nil
}

func compressible(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "application/json")
}

// Compress encodes JSON and text responses of at least minSize bytes with the best
// encoding the client accepts. level is clamped to 1..9.
func Compress(minSize, level int) func(http.Handler) http.Handler {
	level = min(max(level, 1), 9)
	if minSize < 0 {
		minSize = 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enc := negotiate(r.Header.Get("Accept-Encoding"))
			if enc == encodingNone {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			cw := &compressWriter{ResponseWriter: w, enc: enc, minSize: minSize, level: level}
			next.ServeHTTP(cw, r)
			_ = cw.finish()
		})
	}
}
