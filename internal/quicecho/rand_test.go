// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "testing"

func TestConnectionIDGeneratorLength(t *testing.T) {
	gen := NewConnectionIDGenerator()
	if gen.ConnectionIDLen() != SCIDLength {
		t.Fatalf("expected length %d, got %d", SCIDLength, gen.ConnectionIDLen())
	}

	id, err := gen.GenerateConnectionID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Len() != SCIDLength {
		t.Fatalf("expected generated id of length %d, got %d", SCIDLength, id.Len())
	}
}

func TestConnectionIDGeneratorProducesDistinctIDs(t *testing.T) {
	gen := NewConnectionIDGenerator()

	a, err := gen.GenerateConnectionID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := gen.GenerateConnectionID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected two independently generated connection ids to differ")
	}
}

func TestStatelessResetSecretLength(t *testing.T) {
	secret, err := newStatelessResetSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(secret) != StatelessResetSecretLength {
		t.Fatalf("expected length %d, got %d", StatelessResetSecretLength, len(secret))
	}
}
