// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"errors"
	"testing"
)

func TestHandshakeErrorUnwrap(t *testing.T) {
	cause := errors.New("bad alpn")
	err := NewHandshakeError("handshake failed", PeerError, cause)

	if err.Error() != "handshake failed" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to cause")
	}
	if err.Code != PeerError {
		t.Errorf("unexpected code: %v", err.Code)
	}
}
