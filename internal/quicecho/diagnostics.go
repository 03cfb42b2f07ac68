// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"errors"
	"io"

	"github.com/dtn7/cboring"
)

var errInvalidSnapshotArity = errors.New("quicecho: connection snapshot must be a 3-element CBOR array")

var errInvalidDiagnosticsArity = errors.New("quicecho: diagnostics snapshot must be a 2-element CBOR array")

// DiagnosticsSnapshot is the top-level value written by the SIGUSR1
// dump: the server's uptime and a per-connection summary, CBOR-encoded.
type DiagnosticsSnapshot struct {
	UptimeSeconds uint64
	Connections   []ConnectionSnapshot
}

// DiagnosticsSnapshot builds a DiagnosticsSnapshot of the server's current state.
func (s *Server) DiagnosticsSnapshot() DiagnosticsSnapshot {
	return DiagnosticsSnapshot{
		UptimeSeconds: uint64(s.Uptime().Seconds()),
		Connections:   s.Snapshot(),
	}
}

func (d *DiagnosticsSnapshot) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(d.UptimeSeconds, w); err != nil {
		return err
	}
	if err := cboring.WriteArrayLength(uint64(len(d.Connections)), w); err != nil {
		return err
	}
	for i := range d.Connections {
		if err := cboring.Marshal(&d.Connections[i], w); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiagnosticsSnapshot) UnmarshalCbor(r io.Reader) error {
	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	if n != 2 {
		return errInvalidDiagnosticsArity
	}
	if d.UptimeSeconds, err = cboring.ReadUInt(r); err != nil {
		return err
	}
	connCount, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	d.Connections = make([]ConnectionSnapshot, connCount)
	for i := range d.Connections {
		if err := cboring.Unmarshal(&d.Connections[i], r); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConnectionSnapshot) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(c.Peer, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(c.Proto, w); err != nil {
		return err
	}
	return cboring.WriteUInt(uint64(c.Streams), w)
}

func (c *ConnectionSnapshot) UnmarshalCbor(r io.Reader) error {
	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	if n != 3 {
		return errInvalidSnapshotArity
	}
	if c.Peer, err = cboring.ReadTextString(r); err != nil {
		return err
	}
	if c.Proto, err = cboring.ReadTextString(r); err != nil {
		return err
	}
	streams, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	c.Streams = int(streams)
	return nil
}

// WriteDiagnostics marshals the server's current diagnostics snapshot to w,
// invoked from the SIGUSR1 handler in cmd/quicechod.
func (s *Server) WriteDiagnostics(w io.Writer) error {
	snap := s.DiagnosticsSnapshot()
	return snap.MarshalCbor(w)
}
