// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lottery implements the VRF-based block-producer eligibility
// check of spec.md §4.D (Layer 3): a per-slot VRF evaluation against
// a score-weighted threshold, producing publicly verifiable proofs.
package lottery

import (
	"crypto/ed25519"
	"errors"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/luxfi/consensus/crypto/vrf"
	"github.com/luxfi/consensus/ids"
)

// Tier is the participation class used to weight the lottery.
type Tier int

const (
	Tier1 Tier = iota
	Tier2
	Tier3
)

// TierWeights are fixed per spec.md §4.D / §6.
var TierWeights = map[Tier]float64{
	Tier1: 0.70,
	Tier2: 0.20,
	Tier3: 0.10,
}

// ErrUnknownTier is returned when a proof references an unrecognized tier.
var ErrUnknownTier = errors.New("lottery: unknown tier")

// Proof is spec.md §3's EligibilityProof.
type Proof struct {
	Slot   uint64
	Beta   [32]byte
	Pi     []byte
	Tier   Tier
	Score  uint64
}

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// lotteryInput computes alpha = H(prev_vdf_output || slot || node_id || "LOTTERY"),
// per spec.md §4.D step 1.
func lotteryInput(prevVDFOutput ids.Hash, slot uint64, node ids.Hash) []byte {
	h := sha3.NewShake256()
	_, _ = h.Write(prevVDFOutput[:])
	var slotBuf [8]byte
	putUint64BE(slotBuf[:], slot)
	_, _ = h.Write(slotBuf[:])
	_, _ = h.Write(node[:])
	_, _ = h.Write([]byte("LOTTERY"))
	out := make([]byte, 32)
	_, _ = h.Read(out)
	return out
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// threshold computes floor(2^256 * tier_weight * (score/total_score)),
// per spec.md §4.D step 3.
func threshold(tier Tier, score, totalScore uint64) (*big.Int, error) {
	w, ok := TierWeights[tier]
	if !ok {
		return nil, ErrUnknownTier
	}
	if totalScore == 0 {
		return big.NewInt(0), nil
	}
	// floor(2^256 * w * score / totalScore), computed in integer
	// arithmetic to avoid float precision loss near the 2^256 scale:
	// scale w to a fixed-point numerator/denominator pair first.
	const scale = 1 << 32
	wFixed := big.NewInt(int64(w * scale))

	num := new(big.Int).Mul(two256, wFixed)
	num.Mul(num, big.NewInt(int64(score)))

	den := new(big.Int).Mul(big.NewInt(int64(totalScore)), big.NewInt(scale))

	return num.Div(num, den), nil
}

// Check evaluates the lottery for (sk, node, slot): spec.md §4.D's
// check() operation. It returns (proof, true) iff the node wins the
// slot.
func Check(sk ed25519.PrivateKey, node ids.Hash, prevVDFOutput ids.Hash, slot uint64, tier Tier, score, totalScore uint64) (Proof, bool, error) {
	alpha := lotteryInput(prevVDFOutput, slot, node)
	out, err := vrf.Prove(sk, alpha)
	if err != nil {
		return Proof{}, false, err
	}

	th, err := threshold(tier, score, totalScore)
	if err != nil {
		return Proof{}, false, err
	}

	betaInt := new(big.Int).SetBytes(out.Beta[:])
	if betaInt.Cmp(th) >= 0 {
		return Proof{}, false, nil
	}

	return Proof{Slot: slot, Beta: out.Beta, Pi: out.Pi, Tier: tier, Score: score}, true, nil
}

// Verify checks a Proof against the producer's public key and the
// public network state, per spec.md §4.D's verify() operation.
func Verify(proof Proof, pub ed25519.PublicKey, node ids.Hash, prevVDFOutput ids.Hash, totalScore uint64) bool {
	alpha := lotteryInput(prevVDFOutput, proof.Slot, node)
	ok := vrf.Verify(pub, alpha, vrf.Output{Beta: proof.Beta, Pi: proof.Pi})
	if !ok {
		return false
	}

	th, err := threshold(proof.Tier, proof.Score, totalScore)
	if err != nil {
		return false
	}

	betaInt := new(big.Int).SetBytes(proof.Beta[:])
	return betaInt.Cmp(th) < 0
}
