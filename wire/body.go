// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"errors"
)

var (
	ErrBodyTruncated = errors.New("wire: truncated body")
	ErrBodyTrailing  = errors.New("wire: trailing bytes after body")
)

// Body is the variable-length remainder of a block per spec.md §6:
// "varint-counted list of length-prefixed heartbeats, same for
// transactions, then the raw producer signature." Each heartbeat is
// itself a tagged variant (spec.md §9); see heartbeat.go.
type Body struct {
	Heartbeats   []Heartbeat
	Transactions [][]byte
	Signature    []byte
}

// Marshal serializes Body as count-prefixed, length-prefixed byte
// lists followed by the raw signature bytes.
func (b Body) Marshal() []byte {
	encoded := make([][]byte, len(b.Heartbeats))
	for i, hb := range b.Heartbeats {
		encoded[i] = hb.Encode()
	}

	var out []byte
	out = appendVarintList(out, encoded)
	out = appendVarintList(out, b.Transactions)
	out = append(out, b.Signature...)
	return out
}

// UnmarshalBody parses a Body. The signature is whatever remains
// after both length-prefixed lists, since it has no length prefix of
// its own (its length is fixed by the signing scheme in use).
func UnmarshalBody(b []byte) (Body, error) {
	var body Body
	rest := b

	rawHeartbeats, rest, err := readVarintList(rest)
	if err != nil {
		return body, err
	}
	txs, rest, err := readVarintList(rest)
	if err != nil {
		return body, err
	}

	heartbeats := make([]Heartbeat, len(rawHeartbeats))
	for i, raw := range rawHeartbeats {
		hb, err := DecodeHeartbeat(raw)
		if err != nil {
			return body, err
		}
		heartbeats[i] = hb
	}

	body.Heartbeats = heartbeats
	body.Transactions = txs
	body.Signature = append([]byte(nil), rest...)
	return body, nil
}

func appendVarintList(out []byte, items [][]byte) []byte {
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(items)))
	out = append(out, countBuf[:n]...)
	for _, item := range items {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(item)))
		out = append(out, lenBuf[:n]...)
		out = append(out, item...)
	}
	return out
}

func readVarintList(b []byte) ([][]byte, []byte, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, ErrBodyTruncated
	}
	rest := b[n:]

	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		itemLen, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, nil, ErrBodyTruncated
		}
		rest = rest[n:]
		if uint64(len(rest)) < itemLen {
			return nil, nil, ErrBodyTruncated
		}
		items = append(items, append([]byte(nil), rest[:itemLen]...))
		rest = rest[itemLen:]
	}
	return items, rest, nil
}
