// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/consensus/ids"
)

func TestHeaderRoundTripZeroParents(t *testing.T) {
	h := BlockHeader{
		Version:       1,
		TimestampMS:   1_700_000_000_000,
		Height:        0,
		VDFOutput:     ids.Hash{0x01},
		VDFIterations: 1 << 24,
		HeartbeatRoot: ids.Hash{0x02},
		TxRoot:        ids.Hash{0x03},
		StateRoot:     ids.Hash{0x04},
		ProducerID:    ids.Hash{0x05},
		Nonce:         42,
	}

	b, err := h.Marshal()
	require.NoError(t, err)
	require.Len(t, b, FixedHeaderLen)

	got, err := UnmarshalHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderRoundTripWithParents(t *testing.T) {
	h := BlockHeader{
		Version:      1,
		Height:       7,
		ParentHashes: []ids.Hash{{0xAA}, {0xBB}, {0xCC}},
		VDFOutput:    ids.Hash{0x10},
	}

	b, err := h.Marshal()
	require.NoError(t, err)
	require.Len(t, b, FixedHeaderLen+32*3)

	got, err := UnmarshalHeader(b)
	require.NoError(t, err)
	require.Equal(t, h.ParentHashes, got.ParentHashes)
}

func TestHeaderTooManyParentsRejected(t *testing.T) {
	parents := make([]ids.Hash, MaxParents+1)
	h := BlockHeader{ParentHashes: parents}
	_, err := h.Marshal()
	require.ErrorIs(t, err, ErrTooManyParents)
}

func TestHeaderTruncatedRejected(t *testing.T) {
	_, err := UnmarshalHeader([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestHeaderTrailingBytesRejected(t *testing.T) {
	h := BlockHeader{Version: 1}
	b, err := h.Marshal()
	require.NoError(t, err)

	_, err = UnmarshalHeader(append(b, 0xFF))
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestBodyRoundTrip(t *testing.T) {
	body := Body{
		Heartbeats: []Heartbeat{
			{Kind: LightHeartbeat, NodeID: ids.Hash{0x01}, SourceTier: 1, Timestamp: 1000, PrevHash: ids.Hash{0x02}},
			{Kind: FullHeartbeat, NodeID: ids.Hash{0x03}, SourceTier: 2, Timestamp: 2000, PrevHash: ids.Hash{0x04}, StorageProof: []byte("proof")},
		},
		Transactions: [][]byte{[]byte("tx1")},
		Signature:    []byte("0123456789012345678901234567890123456789012345678901234567890123"),
	}

	b := body.Marshal()
	got, err := UnmarshalBody(b)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestHeartbeatRoundTrip(t *testing.T) {
	full := Heartbeat{Kind: FullHeartbeat, NodeID: ids.Hash{0xAA}, SourceTier: 1, Timestamp: 42, PrevHash: ids.Hash{0xBB}, StorageProof: []byte("avail")}
	b := full.Encode()
	got, err := DecodeHeartbeat(b)
	require.NoError(t, err)
	require.Equal(t, full, got)
	require.Equal(t, HeartbeatView{NodeID: ids.Hash{0xAA}, SourceTier: 1, Timestamp: 42, PrevHash: ids.Hash{0xBB}}, got.View())

	light := Heartbeat{Kind: LightHeartbeat, NodeID: ids.Hash{0xCC}, SourceTier: 2, Timestamp: 99, PrevHash: ids.Hash{0xDD}}
	b = light.Encode()
	got, err = DecodeHeartbeat(b)
	require.NoError(t, err)
	require.Equal(t, light, got)
}

func TestDecodeHeartbeatRejectsUnknownKind(t *testing.T) {
	full := Heartbeat{Kind: FullHeartbeat, NodeID: ids.Hash{0x01}, PrevHash: ids.Hash{0x02}}
	b := full.Encode()
	b[0] = 0xFF
	_, err := DecodeHeartbeat(b)
	require.ErrorIs(t, err, ErrUnknownHeartbeatKind)
}

func TestBodyRoundTripEmpty(t *testing.T) {
	body := Body{Signature: []byte{}}
	b := body.Marshal()
	got, err := UnmarshalBody(b)
	require.NoError(t, err)
	require.Empty(t, got.Heartbeats)
	require.Empty(t, got.Transactions)
}
