// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// diagnosticsJSON is the JSON-facing mirror of DiagnosticsSnapshot, served
// over plain HTTP so the dump can be inspected without a CBOR decoder on
// hand. The CBOR form (diagnostics.go) remains the canonical SIGUSR1
// representation; this is a convenience view for humans.
type diagnosticsJSON struct {
	UptimeSeconds uint64               `json:"uptime_seconds"`
	Connections   []ConnectionSnapshot `json:"connections"`
}

// ServeDiagnosticsHTTP runs a small HTTP server exposing GET /status and a
// WebSocket echo endpoint on GET /echo until ctx is canceled. It is
// independent of the QUIC listener: a separate TCP socket on addr.
func (s *Server) ServeDiagnosticsHTTP(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/echo", s.handleWSEcho).Methods(http.MethodGet)

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	log.WithField("address", addr).Info("diagnostics HTTP server listening")
	err := httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.DiagnosticsSnapshot()
	resp := diagnosticsJSON{
		UptimeSeconds: snap.UptimeSeconds,
		Connections:   snap.Connections,
	}

	w.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("failed to write diagnostics response")
	}
}

// handleWSEcho upgrades GET /echo to a plain WebSocket and echoes every
// message back verbatim, preserving its frame type. It mirrors the echo
// contract of the QUIC listener over ordinary TCP, so a client without a
// QUIC stack (curl --include aside, any browser devtools console) can
// still exercise the server's echo path.
func (s *Server) handleWSEcho(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("upgrading HTTP request to WebSocket errored")
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket closed unexpectedly")
			}
			return
		}
		if err := conn.WriteMessage(msgType, data); err != nil {
			log.WithError(err).Warn("error writing websocket echo message")
			return
		}
	}
}
