// Package preprocess implements the LZP and delta2 preprocessing passes of
// spec §4.2 step 4 / §3 (the preprocessing sub-header). Neither algorithm
// appears as a library anywhere in the retrieved corpus, so both are
// hand-rolled here, the one deliberate stdlib-only corner of this repo,
// recorded in DESIGN.md with that justification.
package preprocess

import (
	"encoding/binary"
	"errors"
)

// errCorruptLZP is returned when an LZP stream references a match that
// cannot be satisfied from the bytes decoded so far.
var errCorruptLZP = errors.New("preprocess: corrupt LZP stream")

// lzpMinMatch is the shortest run LZP will encode as a match rather than
// literal bytes; below this the varint-length overhead does not pay for
// itself.
const lzpMinMatch = 8

// lzpOrder is the number of context bytes hashed to predict the next match
// position, matching the classic LZP "order-N" parameterization.
const lzpOrder = 4

// HashSizeBits scales the LZP context table with level, wider tables at
// higher levels trading memory for fewer hash collisions (spec §6 prop
// "hashsize = lzp_hash_size(level)").
func HashSizeBits(level int) uint {
	switch {
	case level >= 10:
		return 20
	case level >= 6:
		return 18
	case level >= 3:
		return 16
	default:
		return 14
	}
}

func lzpHash(b []byte) uint32 {
	var h uint32 = 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

func newLzpTable(level int) (table []int32, mask uint32) {
	bits := HashSizeBits(level)
	size := 1 << bits
	table = make([]int32, size)
	for i := range table {
		table[i] = -1
	}
	return table, uint32(size - 1)
}

// LZPCompress applies LZP to in. The caller (the transform stack) is
// responsible for discarding the result and skipping LZP when out is not
// smaller than in (spec §4.2 step 4: "if it failed or did not shrink,
// skip it").
func LZPCompress(in []byte, level int) []byte {
	table, mask := newLzpTable(level)

	out := make([]byte, 0, len(in))
	var varintBuf [binary.MaxVarintLen64]byte

	i := 0
	for i < len(in) {
		if i >= lzpOrder {
			ctx := lzpHash(in[i-lzpOrder:i]) & mask
			pred := table[ctx]
			table[ctx] = int32(i)

			if pred >= 0 && int(pred) < i {
				matchLen := matchRun(in, int(pred), i)
				if matchLen >= lzpMinMatch {
					n := binary.PutUvarint(varintBuf[:], uint64(matchLen))
					out = append(out, varintBuf[:n]...)
					i += matchLen
					continue
				}
			}
		}
		// Literal: zero-length match marker followed by the raw byte.
		out = append(out, 0)
		out = append(out, in[i])
		i++
	}
	return out
}

// matchRun returns how many bytes starting at pred equal bytes starting at
// cur, without reading past len(in) from either side.
func matchRun(in []byte, pred, cur int) int {
	n := 0
	for cur+n < len(in) && pred+n < cur && in[pred+n] == in[cur+n] {
		n++
	}
	return n
}

// LZPDecompress reverses LZPCompress given the level it was encoded at and
// the known decompressed length. It mirrors LZPCompress token-for-token:
// at each output position i, the same context hash is computed and the
// same table slot is consulted and overwritten before the token (literal
// or match) is applied, keeping the two tables in lockstep.
func LZPDecompress(in []byte, level, outLen int) ([]byte, error) {
	table, mask := newLzpTable(level)

	out := make([]byte, 0, outLen)
	r := 0
	for r < len(in) && len(out) < outLen {
		i := len(out)
		var pred int32 = -1
		if i >= lzpOrder {
			ctx := lzpHash(out[i-lzpOrder:i]) & mask
			pred = table[ctx]
			table[ctx] = int32(i)
		}

		length, n := binary.Uvarint(in[r:])
		if n <= 0 {
			return nil, errCorruptLZP
		}
		r += n

		if length == 0 {
			if r >= len(in) {
				return nil, errCorruptLZP
			}
			out = append(out, in[r])
			r++
			continue
		}

		if pred < 0 || int(pred) >= i {
			return nil, errCorruptLZP
		}
		for k := 0; k < int(length); k++ {
			out = append(out, out[int(pred)+k])
		}
	}
	if len(out) != outLen {
		return nil, errCorruptLZP
	}
	return out, nil
}
