// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "testing"

func TestConnectionSetProtoIsSetOnce(t *testing.T) {
	c := &Connection{streams: NewStreamTable(), wtSessionStream: -1}

	c.setProto(ProtoH3)
	if c.Proto() != ProtoH3 {
		t.Fatalf("expected ProtoH3, got %v", c.Proto())
	}

	c.setProto(ProtoEcho)
	if c.Proto() != ProtoH3 {
		t.Fatalf("proto must not change after first set, got %v", c.Proto())
	}
}

func TestConnectionWTSessionStreamLifecycle(t *testing.T) {
	c := &Connection{streams: NewStreamTable(), wtSessionStream: -1}

	if got := c.WTSessionStream(); got != -1 {
		t.Fatalf("expected -1 before any session, got %d", got)
	}

	c.setWTSessionStream(7)
	if got := c.WTSessionStream(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}

	c.clearWTSessionStream(7)
	if got := c.WTSessionStream(); got != -1 {
		t.Fatalf("expected -1 after clearing, got %d", got)
	}
}

func TestConnectionClearWTSessionStreamIgnoresMismatch(t *testing.T) {
	c := &Connection{streams: NewStreamTable(), wtSessionStream: -1}
	c.setWTSessionStream(3)
	c.clearWTSessionStream(9) // different id: must not clear
	if got := c.WTSessionStream(); got != 3 {
		t.Fatalf("expected 3 to remain set, got %d", got)
	}
}
