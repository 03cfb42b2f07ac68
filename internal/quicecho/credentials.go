// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"crypto/tls"

	log "github.com/sirupsen/logrus"
)

// alpnOrder is the ALPN list the server advertises, in preference order:
// h3 before echo.
var alpnOrder = []string{"h3", "echo"}

// ProtoKind is the application protocol a connection was elevated to,
// determined once from the negotiated ALPN.
type ProtoKind int

const (
	// ProtoUnknown is the transient pre-handshake state.
	ProtoUnknown ProtoKind = iota
	// ProtoEcho is raw QUIC stream/datagram echo.
	ProtoEcho
	// ProtoH3 is HTTP/3 (+ WebTransport/WebSocket-over-H3).
	ProtoH3
)

func (p ProtoKind) String() string {
	switch p {
	case ProtoEcho:
		return "echo"
	case ProtoH3:
		return "h3"
	default:
		return "unknown"
	}
}

// protoForALPN maps a negotiated ALPN protocol string to a ProtoKind. An
// unrecognized value is a programming error: the TLS stack should never
// negotiate an ALPN outside alpnOrder.
func protoForALPN(alpn string) ProtoKind {
	switch alpn {
	case "h3":
		return ProtoH3
	case "echo":
		return ProtoEcho
	default:
		return ProtoUnknown
	}
}

// Credentials holds the server's parsed certificate chain and private key,
// loaded once at startup; TLSConfig derives a *tls.Config from them. Loading
// failures are configuration faults: the caller is expected to log.Fatal.
type Credentials struct {
	cert tls.Certificate
}

// LoadCredentials parses a certificate chain and PKCS#8 private key from
// disk. A parse failure here is always a process-exit-level fault, never a
// runtime error: the caller should treat a non-nil error as fatal.
func LoadCredentials(certFile, keyFile string) (*Credentials, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &Credentials{cert: cert}, nil
}

// TLSConfig builds the *tls.Config the QUIC transport is configured with:
// TLS 1.3 only, session tickets enabled, the h3/echo ALPN selector, and
// 0-RTT resumption left to the stack's own session-ticket/anti-replay
// machinery.
func (c *Credentials) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates:           []tls.Certificate{c.cert},
		MinVersion:             tls.VersionTLS13,
		NextProtos:             alpnOrder,
		SessionTicketsDisabled: false,
		GetConfigForClient: func(chi *tls.ClientHelloInfo) (*tls.Config, error) {
			if chosen, ok := SelectALPN(chi.SupportedProtos); ok {
				log.WithField("alpn", chosen).Debug("ALPN overlap with client offer")
			}
			return nil, nil
		},
	}
}

// SelectALPN scans the peer's offered protocols for the first one this
// server advertises (h3, then echo). No match is a fatal TLS alert, which
// tls.Config.NextProtos already produces via the standard ALPN negotiation
// failure path; this helper mirrors that selection so the ClientHello hook
// can log the outcome before the stack alerts.
func SelectALPN(offered []string) (string, bool) {
	for _, candidate := range alpnOrder {
		for _, o := range offered {
			if o == candidate {
				return candidate, true
			}
		}
	}
	log.WithField("offered", offered).Warn("no overlap with advertised ALPN list")
	return "", false
}
