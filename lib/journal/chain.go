// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest linking a record to its
// predecessor.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// chainDomainKey keys the BLAKE3 hash so journal chain hashes can never
// collide with hashes computed for another purpose over the same bytes.
// ASCII "lull.journal.chain", zero-padded to 32 bytes. Changing it
// invalidates every existing journal.
var chainDomainKey = [32]byte{
	'l', 'u', 'l', 'l', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l', '.',
	'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// chainHash computes the hash of record given the hash of the record
// before it (the zero Hash for seq 1). It covers the plaintext payload,
// so the chain is independent of how the payload is compressed or
// sealed on disk.
func chainHash(previous Hash, record *Record) Hash {
	hasher, err := blake3.NewKeyed(chainDomainKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	buffer := make([]byte, 0, 64+len(record.InstanceID)+len(record.Kind)+len(record.Payload))
	buffer = append(buffer, previous[:]...)
	buffer = appendField(buffer, []byte(record.InstanceID))
	buffer = binary.BigEndian.AppendUint64(buffer, record.Seq)
	buffer = appendField(buffer, []byte(record.Kind))
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(record.RecordedAt.UnixNano()))
	if record.Terminal {
		buffer = append(buffer, 1)
	} else {
		buffer = append(buffer, 0)
	}
	buffer = appendField(buffer, record.Payload)
	hasher.Write(buffer)

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// appendField writes a length-prefixed byte string so adjacent
// variable-length fields cannot be shifted into each other.
func appendField(buffer, field []byte) []byte {
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(field)))
	return append(buffer, field...)
}
