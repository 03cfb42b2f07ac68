// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"
)

// runEcho drives a connection negotiated for raw QUIC echo (ALPN "echo").
// It accepts streams and datagrams until the connection closes, spawning
// one goroutine per stream. The per-stream goroutine both receives (via
// blocking Read) and writes back (via blocking Write), so read and echo
// are the same loop rather than separate receive and drain phases.
func (c *Connection) runEcho(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runEchoDatagrams(ctx)
	}()

	for {
		stream, err := c.quicConn.AcceptStream(ctx)
		if err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.echoStream(stream)
		}()
	}

	wg.Wait()
}

// echoStream implements the strict-FIFO echo contract: the bytes written
// back are a contiguous prefix of the bytes received, byte-for-byte, with
// FIN propagated once the peer's FIN has been seen and every buffered byte
// has been written out.
func (c *Connection) echoStream(stream quic.Stream) {
	id := int64(stream.StreamID())
	record := c.streams.GetOrCreate(id)
	record.Class = RawEcho
	defer c.streams.Remove(id)

	buf := make([]byte, 32*1024)
	readDone := false

	for {
		if !readDone {
			n, err := stream.Read(buf)
			if n > 0 {
				buffered := record.Append(buf[:n])
				if buffered < n {
					log.WithFields(log.Fields{
						"stream": id,
						"excess": n - buffered,
					}).Warn("echo buffer overflow, truncating")
					stream.CancelRead(quic.StreamErrorCode(EchoBufferOverflow))
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					record.SetFin()
				} else {
					var streamErr *quic.StreamError
					if errors.As(err, &streamErr) {
						log.WithFields(log.Fields{
							"stream": id,
							"error":  streamErr,
						}).Debug("stream reset or stopped by peer")
					} else {
						log.WithFields(log.Fields{
							"stream": id,
							"error":  err,
						}).Warn("error reading echo stream")
						stream.CancelWrite(StreamTransmissionError)
					}
				}
				readDone = true
			}
		}

		if !record.Drained() {
			pending := record.Pending()
			n, err := stream.Write(pending)
			if n > 0 {
				record.Advance(n)
			}
			if err != nil {
				stream.CancelWrite(inferStreamErrorCode(err))
				log.WithFields(log.Fields{"stream": id, "error": err}).Warn("error writing echo stream")
				return
			}
		}

		if readDone && record.Drained() {
			if record.FinReceived() {
				_ = stream.Close()
			}
			c.server.reportStatus(NewConnStatus(c, StreamEchoed, id))
			return
		}
	}
}

// runEchoDatagrams echoes DATAGRAM frames: every datagram received is
// sent back byte-equal.
func (c *Connection) runEchoDatagrams(ctx context.Context) {
	for {
		data, err := c.quicConn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		if err := c.quicConn.SendDatagram(data); err != nil {
			log.WithField("error", err).Warn("error echoing datagram")
			_ = c.quicConn.CloseWithError(ConnectionError, "datagram echo failed")
			return
		}
	}
}
