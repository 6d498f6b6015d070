package events

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const PublicKeyLength = 32

// PublicKey is a 32-byte ledger account address, rendered as base58.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("invalid public key %q: got %d bytes, want %d", s, len(b), PublicKeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
