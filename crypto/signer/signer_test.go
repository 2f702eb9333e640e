// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEd25519SignerRoundTrip(t *testing.T) {
	s, err := GenerateEd25519()
	require.NoError(t, err)

	msg := []byte("block body bytes")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	require.True(t, VerifyEd25519(s.PublicKey(), msg, sig))
	require.False(t, VerifyEd25519(s.PublicKey(), []byte("tampered"), sig))
}

func TestNewEd25519FromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	a := NewEd25519FromSeed(seed)
	b := NewEd25519FromSeed(seed)
	require.Equal(t, a.PublicKey(), b.PublicKey())

	sig, err := a.Sign([]byte("x"))
	require.NoError(t, err)
	require.True(t, VerifyEd25519(b.PublicKey(), []byte("x"), sig))
}
