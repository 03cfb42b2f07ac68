// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "testing"

func TestStatusTypeString(t *testing.T) {
	cases := map[StatusType]string{
		ConnectionAccepted: "Connection Accepted",
		ConnectionClosed:   "Connection Closed",
		StreamEchoed:       "Stream Echoed",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("StatusType(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestNewConnStatus(t *testing.T) {
	cs := NewConnStatus(nil, ConnectionAccepted, "echo")
	if cs.Type != ConnectionAccepted {
		t.Errorf("unexpected type: %v", cs.Type)
	}
	if cs.Message != "echo" {
		t.Errorf("unexpected message: %v", cs.Message)
	}
}
