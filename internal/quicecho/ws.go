// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"errors"
	"io"
	"net/http"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	log "github.com/sirupsen/logrus"
)

// handleWebSocketConnect implements the CONNECT + :protocol=websocket
// branch of the Extended CONNECT dispatch. RFC 9220 carries WebSocket
// framing directly on the Extended CONNECT stream once the 200 response
// has been sent, and the echo contract for a WS-classified stream is the
// same bounded FIFO byte echo a WebTransport stream gets: the server does
// not interpret the RFC 6455 frames, it reflects them.
func (c *Connection) handleWebSocketConnect(w http.ResponseWriter, r *http.Request, record *StreamRecord) {
	record.Class = WS

	streamer, ok := w.(http3.HTTPStreamer)
	if !ok {
		log.Warn("response writer does not implement HTTPStreamer; cannot take over websocket stream")
		w.WriteHeader(http.StatusInternalServerError)
		_ = c.quicConn.CloseWithError(LocalError, "response writer missing stream takeover support")
		return
	}

	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	log.WithFields(log.Fields{
		"peer":   c.quicConn.RemoteAddr(),
		"stream": record.StreamID,
	}).Info("websocket-over-h3 stream established")

	c.echoWSStream(streamer.HTTPStream(), record)
}

// echoWSStream applies the strict-FIFO echo contract to the Extended
// CONNECT stream: bytes written back are a contiguous prefix of the bytes
// received, bounded at MaxEchoBuffer, with FIN propagated after the
// peer's FIN has been seen and the buffer drained.
func (c *Connection) echoWSStream(stream quic.Stream, record *StreamRecord) {
	id := record.StreamID
	defer c.streams.Remove(id)

	buf := make([]byte, 32*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			buffered := record.Append(buf[:n])
			if buffered < n {
				log.WithFields(log.Fields{"stream": id, "excess": n - buffered}).Warn("echo buffer overflow, truncating")
				stream.CancelRead(quic.StreamErrorCode(EchoBufferOverflow))
			}
		}
		if !record.Drained() {
			pending := record.Pending()
			written, werr := stream.Write(pending)
			record.Advance(written)
			if werr != nil {
				stream.CancelWrite(inferStreamErrorCode(werr))
				log.WithFields(log.Fields{"stream": id, "error": werr}).Warn("error writing websocket stream")
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				record.SetFin()
				_ = stream.Close()
			}
			c.server.reportStatus(NewConnStatus(c, StreamEchoed, id))
			return
		}
	}
}
