// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrf implements the verifiable random function behind the
// lottery's per-slot eligibility check (spec.md §4.D). The
// construction is deliberately simple: Ed25519 signatures are
// deterministic given (sk, msg), so sig = Sign(sk, alpha) is itself a
// unique, verifiable function of alpha; beta is then derived from sig
// by hashing, and the signature doubles as the proof. This gives the
// three VRF properties spec.md needs (unpredictable, verifiable,
// unique) without pulling in a full elliptic-curve VRF library.
package vrf

import (
	"crypto/ed25519"
	"errors"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidProof is returned by Verify when the embedded signature
// does not check out against the public key and input.
var ErrInvalidProof = errors.New("vrf: invalid proof")

// Output is the (beta, pi) pair from spec.md §3's EligibilityProof.
type Output struct {
	Beta [32]byte // the random output
	Pi   []byte   // the proof (here: the Ed25519 signature over alpha)
}

// Prove computes beta and a proof pi from a private key and input.
// sk must be a 64-byte Ed25519 private key (seed+public).
func Prove(sk ed25519.PrivateKey, alpha []byte) (Output, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return Output{}, errors.New("vrf: invalid private key size")
	}
	sig := ed25519.Sign(sk, alpha)
	return Output{Beta: hashToBeta(sig), Pi: sig}, nil
}

// Verify checks that out was honestly derived from (pub, alpha).
func Verify(pub ed25519.PublicKey, alpha []byte, out Output) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	if !ed25519.Verify(pub, alpha, out.Pi) {
		return false
	}
	return hashToBeta(out.Pi) == out.Beta
}

func hashToBeta(sig []byte) [32]byte {
	var beta [32]byte
	h := sha3.NewShake256()
	_, _ = h.Write([]byte("RUBIN_VRF_BETA"))
	_, _ = h.Write(sig)
	_, _ = h.Read(beta[:])
	return beta
}
