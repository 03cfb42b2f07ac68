// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"net/http"

	"github.com/quic-go/quic-go/http3"
	log "github.com/sirupsen/logrus"
)

// h3Handler builds the http.Handler carrying the Extended CONNECT policy
// and the request dispatch table. quic-go/http3 calls it once per HTTP/3
// request stream after headers are fully parsed, so the pseudo-headers are
// already on the *http.Request (Extended CONNECT surfaces :protocol as
// r.Proto).
func (c *Connection) h3Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := c.classifyRequest(w, r)
		defer c.streams.Remove(record.StreamID)

		switch {
		case r.Method == http.MethodConnect && r.Proto == "webtransport":
			c.handleWebTransportConnect(w, r, record)
		case r.Method == http.MethodConnect && r.Proto == "websocket":
			c.handleWebSocketConnect(w, r, record)
		case r.Method == http.MethodConnect:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "/.well-known/webtransport"):
			w.Header().Set("content-type", "text/plain")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// classifyRequest creates the stream record for an incoming HTTP/3 request
// stream and captures the :method, :path, and :protocol pseudo-headers,
// bounded-copy.
func (c *Connection) classifyRequest(w http.ResponseWriter, r *http.Request) *StreamRecord {
	id := streamIDFromResponseWriter(w)
	record := c.streams.GetOrCreate(id)
	record.Class = H3Request
	record.Method = truncateField(r.Method, 16)
	record.Path = truncateField(r.URL.Path, 256)
	record.Protocol = truncateField(r.Proto, 32)
	return record
}

func truncateField(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// streamIDFromResponseWriter recovers the underlying QUIC stream id for a
// request, via quic-go/http3's HTTPStreamer extension interface. Every
// ResponseWriter produced by http3.Server implements it.
func streamIDFromResponseWriter(w http.ResponseWriter) int64 {
	if streamer, ok := w.(http3.HTTPStreamer); ok {
		return int64(streamer.HTTPStream().StreamID())
	}
	log.Warn("response writer does not implement HTTPStreamer; stream id unavailable")
	return -1
}
