// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// fakeWTStream is a webtransport.Stream double backed by a pair of
// io.Pipes, the WebTransport-session analog of fakeQuicStream in
// echo_test.go. Embedding the (nil) real interface means only the methods
// echoWTBidiStream actually calls need a concrete implementation here.
type fakeWTStream struct {
	webtransport.Stream

	id  quic.StreamID
	in  *io.PipeReader
	out *io.PipeWriter

	mu              sync.Mutex
	canceledRead    bool
	canceledWrite   bool
	cancelReadCode  webtransport.StreamErrorCode
	cancelWriteCode webtransport.StreamErrorCode
}

func (s *fakeWTStream) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *fakeWTStream) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *fakeWTStream) Close() error                { return s.out.Close() }
func (s *fakeWTStream) StreamID() quic.StreamID     { return s.id }

func (s *fakeWTStream) CancelRead(code webtransport.StreamErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceledRead = true
	s.cancelReadCode = code
}

func (s *fakeWTStream) CancelWrite(code webtransport.StreamErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceledWrite = true
	s.cancelWriteCode = code
}

// fakeWTReceiveStream is a webtransport.ReceiveStream double for
// echoWTUniStream, which only ever reads and checks for FIN.
type fakeWTReceiveStream struct {
	webtransport.ReceiveStream

	id quic.StreamID
	in *io.PipeReader
}

func (s *fakeWTReceiveStream) Read(p []byte) (int, error) { return s.in.Read(p) }
func (s *fakeWTReceiveStream) StreamID() quic.StreamID    { return s.id }

// TestEchoWTBidiStreamFIFO verifies that a WebTransport bidirectional
// stream opened within a session gets the same byte-for-byte FIFO echo as
// a raw QUIC echo stream.
func TestEchoWTBidiStreamFIFO(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	stream := &fakeWTStream{id: 12, in: inR, out: outW}

	c := newTestConnection()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.echoWTBidiStream(stream, 12)
	}()

	payload := []byte("webtransport bidi echo payload")
	go func() {
		_, _ = inW.Write(payload)
		_ = inW.Close()
	}()

	got, err := io.ReadAll(outR)
	if err != nil {
		t.Fatalf("reading echoed bytes: %v", err)
	}
	<-done

	if !bytes.Equal(got, payload) {
		t.Fatalf("echoed bytes = %q, want %q", got, payload)
	}
	if _, ok := c.streams.Get(int64(stream.id)); ok {
		t.Fatal("stream record should be removed once echoWTBidiStream returns")
	}
}

// TestEchoWTBidiStreamOverflowCancelsRead mirrors the raw-echo overflow
// test: bytes beyond MaxEchoBuffer are dropped and CancelRead is called
// with EchoBufferOverflow.
func TestEchoWTBidiStreamOverflowCancelsRead(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	stream := &fakeWTStream{id: 16, in: inR, out: outW}

	c := newTestConnection()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.echoWTBidiStream(stream, 16)
	}()

	payload := bytes.Repeat([]byte{'w'}, MaxEchoBuffer+2048)
	go func() {
		_, _ = inW.Write(payload)
		_ = inW.Close()
	}()

	got, err := io.ReadAll(outR)
	if err != nil {
		t.Fatalf("reading echoed bytes: %v", err)
	}
	<-done

	if len(got) != MaxEchoBuffer {
		t.Fatalf("expected truncation to %d bytes, got %d", MaxEchoBuffer, len(got))
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if !stream.canceledRead {
		t.Fatal("expected CancelRead to be called on overflow")
	}
	if stream.cancelReadCode != webtransport.StreamErrorCode(EchoBufferOverflow) {
		t.Fatalf("expected cancel code %d, got %d", EchoBufferOverflow, stream.cancelReadCode)
	}
}

// TestEchoWTUniStreamSetsFinOnEOF verifies that a unidirectional stream is
// drained and its record marked fin-received once the peer closes it.
func TestEchoWTUniStreamSetsFinOnEOF(t *testing.T) {
	inR, inW := io.Pipe()
	stream := &fakeWTReceiveStream{id: 20, in: inR}

	c := newTestConnection()
	record := c.streams.GetOrCreate(int64(stream.id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.echoWTUniStream(stream, 20)
	}()

	go func() {
		_, _ = inW.Write([]byte("uni stream payload, discarded"))
		_ = inW.Close()
	}()

	<-done

	if !record.FinReceived() {
		t.Fatal("expected fin to be recorded once the peer closed the uni stream")
	}
	if record.Class != WTUni {
		t.Fatalf("expected stream class WTUni, got %v", record.Class)
	}
	if _, ok := c.streams.Get(int64(stream.id)); ok {
		t.Fatal("stream record should be removed once echoWTUniStream returns")
	}
}
