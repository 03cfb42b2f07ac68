// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"time"

	"github.com/quic-go/quic-go"
)

// DefaultListenAddr is the wildcard IPv4 UDP bind address and port.
const DefaultListenAddr = "0.0.0.0:4433"

// MaxUDPPayload bounds the size of a single outbound datagram.
const MaxUDPPayload = 1200

// Config collects the transport parameters, HTTP/3 settings, and listener
// and credential options for a server. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	ListenAddr string

	CertFile string
	KeyFile  string

	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxData                 uint64
	InitialMaxStreamsBidi          int64
	InitialMaxStreamsUni           int64
	MaxIdleTimeout                 time.Duration
	ActiveConnectionIDLimit        uint64
	MaxDatagramFrameSize           uint64

	// QPACKMaxTableCapacity and QPACKBlockedStreams hold the HTTP/3 QPACK
	// values. They are not passed to the HTTP/3 layer: runH3 does not send
	// them as SETTINGS.
	QPACKMaxTableCapacity uint64
	QPACKBlockedStreams   uint64
	// EnableExtendedConnect is the RFC 8441/9220 Extended CONNECT switch.
	// Its only effect is gating SETTINGS_WT_MAX_SESSIONS in
	// AdditionalH3Settings; it does not turn Extended CONNECT handling in the
	// request handler on or off.
	EnableExtendedConnect bool
	// EnableH3Datagram turns on RFC 9297 HTTP/3 datagrams.
	EnableH3Datagram bool
	// WebTransportMaxSessions is advertised via SETTINGS_WT_MAX_SESSIONS
	// (id 0x14e9cd29) when both Extended CONNECT and H3 datagrams are on.
	WebTransportMaxSessions uint64
}

// DefaultConfig returns the steady-state configuration. 0-RTT connections
// use these same values: there is no separate "early" parameter set.
func DefaultConfig() Config {
	return Config{
		ListenAddr: DefaultListenAddr,

		InitialMaxStreamDataBidiLocal:  256 * 1024,
		InitialMaxStreamDataBidiRemote: 256 * 1024,
		InitialMaxStreamDataUni:        256 * 1024,
		InitialMaxData:                 1024 * 1024,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           10,
		MaxIdleTimeout:                 30 * time.Second,
		ActiveConnectionIDLimit:        7,
		MaxDatagramFrameSize:           65535,

		QPACKMaxTableCapacity:   4096,
		QPACKBlockedStreams:     100,
		EnableExtendedConnect:   true,
		EnableH3Datagram:        true,
		WebTransportMaxSessions: 100,
	}
}

// QUICConfig translates Config into the quic.Config the transport library
// consumes. DATAGRAM frames are enabled iff a nonzero max frame size is
// configured.
func (c Config) QUICConfig() *quic.Config {
	return &quic.Config{
		InitialPacketSize:              MaxUDPPayload,
		DisablePathMTUDiscovery:        true,
		MaxIdleTimeout:                 c.MaxIdleTimeout,
		MaxIncomingStreams:             c.InitialMaxStreamsBidi,
		MaxIncomingUniStreams:          c.InitialMaxStreamsUni,
		InitialStreamReceiveWindow:     c.InitialMaxStreamDataBidiRemote,
		MaxStreamReceiveWindow:         c.InitialMaxStreamDataBidiRemote,
		InitialConnectionReceiveWindow: c.InitialMaxData,
		MaxConnectionReceiveWindow:     c.InitialMaxData,
		EnableDatagrams:                c.MaxDatagramFrameSize > 0,
		Allow0RTT:                      true,
	}
}

// settingsWTMaxSessionsID is the SETTINGS_WT_MAX_SESSIONS identifier from
// the WebTransport-over-HTTP/3 draft.
const settingsWTMaxSessionsID = 0x14e9cd29

// AdditionalH3Settings returns the SETTINGS entries to send beyond what
// quic-go/http3 emits on its own, namely SETTINGS_WT_MAX_SESSIONS when
// both Extended CONNECT and H3 datagrams are on.
func (c Config) AdditionalH3Settings() map[uint64]uint64 {
	settings := make(map[uint64]uint64)
	if c.EnableExtendedConnect && c.EnableH3Datagram && c.WebTransportMaxSessions > 0 {
		settings[settingsWTMaxSessionsID] = c.WebTransportMaxSessions
	}
	return settings
}
