// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"crypto/rand"

	"github.com/quic-go/quic-go"
)

// SCIDLength is the length of server-chosen source connection ids.
const SCIDLength = 16

// StatelessResetSecretLength is the size of the process-wide secret used to
// derive stateless-reset tokens.
const StatelessResetSecretLength = 32

// connIDGenerator implements quic.ConnectionIDGenerator using crypto/rand.
type connIDGenerator struct{}

// NewConnectionIDGenerator returns the connection id generator the server
// hands to quic.Transport so every server-chosen SCID is cryptographically
// random and of fixed length.
func NewConnectionIDGenerator() quic.ConnectionIDGenerator {
	return connIDGenerator{}
}

func (connIDGenerator) GenerateConnectionID() (quic.ConnectionID, error) {
	b := make([]byte, SCIDLength)
	if _, err := rand.Read(b); err != nil {
		return quic.ConnectionID{}, err
	}
	return quic.ConnectionIDFromBytes(b), nil
}

func (connIDGenerator) ConnectionIDLen() int {
	return SCIDLength
}

// newStatelessResetSecret generates the process-wide 32-byte secret from
// which quic-go derives per-CID stateless-reset tokens. It is established
// once at startup and never changes during the process lifetime.
func newStatelessResetSecret() ([]byte, error) {
	secret := make([]byte, StatelessResetSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}
