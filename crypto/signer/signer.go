// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signer models the "opaque sign/verify over raw byte
// strings" collaborator interface from spec.md §6. The kernel never
// cares how keys are stored or rotated; it only ever signs and
// verifies raw bytes.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// ErrInvalidSignature names a signature that does not verify.
// VerifyEd25519 itself reports the outcome as a bool, not this error.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// Signer produces and checks signatures over raw byte strings. The
// concrete key scheme is deliberately abstract per spec.md §1 ("any
// post-quantum signature scheme of matching security may be
// substituted"); Ed25519 is the default, swappable implementation.
type Signer interface {
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Verifier checks a signature against a public key, independent of
// any particular Signer instance.
type Verifier func(pub, msg, sig []byte) bool

// Ed25519Signer is the default Signer implementation.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// GenerateEd25519 creates a fresh random keypair.
func GenerateEd25519() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, pub: pub}, nil
}

// NewEd25519FromSeed deterministically derives a keypair from a
// 32-byte seed; used by tests and by nodes deriving their producer
// identity from a stored key.
func NewEd25519FromSeed(seed []byte) *Ed25519Signer {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{priv: priv, pub: pub}
}

func (s *Ed25519Signer) PublicKey() []byte { return append([]byte(nil), s.pub...) }

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

// VerifyEd25519 checks an Ed25519 signature; satisfies Verifier.
func VerifyEd25519(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
