// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"context"
	"errors"
	"net/http"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
	log "github.com/sirupsen/logrus"
)

// runH3 elevates a connection negotiated for ALPN "h3" into HTTP/3 mode.
// ServeQUICConn opens the control stream and the QPACK encoder/decoder
// streams internally as soon as it is handed the accepted connection; this
// function only supplies the h3_datagram switch, SETTINGS_WT_MAX_SESSIONS
// (via AdditionalH3Settings) and the request handler, then blocks until the
// connection is done. The Config's QPACK table-capacity and blocked-streams
// values are not passed to the HTTP/3 layer.
func (c *Connection) runH3(ctx context.Context) {
	cfg := c.server.config

	wtSrv := &webtransport.Server{
		H3: http3.Server{
			EnableDatagrams:    cfg.EnableH3Datagram,
			AdditionalSettings: cfg.AdditionalH3Settings(),
			Handler:            c.h3Handler(),
		},
		CheckOrigin: func(*http.Request) bool { return true },
	}
	c.wtServer = wtSrv

	log.WithField("peer", c.quicConn.RemoteAddr()).Debug("elevating connection to HTTP/3")

	if err := wtSrv.ServeQUICConn(c.quicConn); err != nil {
		log.WithFields(log.Fields{
			"peer":  c.quicConn.RemoteAddr(),
			"error": err,
		}).Debug("h3 session ended")
		if !errors.Is(err, context.Canceled) {
			_ = c.quicConn.CloseWithError(inferAppErrorCode(err), "h3 session failed")
		}
	}
}
