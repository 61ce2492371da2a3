// Package chunk defines the per-chunk data model shared by the container
// codec and the transform stack: the flags bitfield, the preprocessing
// sub-header, and the in-memory Chunk that a worker fills in.
package chunk

import "encoding/binary"

// Type is the 8-bit flags bitfield carried by every chunk frame (spec §3).
type Type uint8

const (
	// Compressed marks that payload went through a compression codec.
	Compressed Type = 1 << 0
	// Dedup marks that payload is a dedup-encoded frame (index + blocks).
	Dedup Type = 1 << 1
	// Preproc marks that the 9-byte preprocessing sub-header precedes payload.
	Preproc Type = 1 << 2
	// bit 3 reserved, must be 0.
	_reservedBit3 Type = 1 << 3
	// adaptiveShift is where the 2-bit adaptive codec id lives (bits 4-5).
	adaptiveShift = 4
	adaptiveMask  = 0x3 << adaptiveShift
	// bit 6 reserved, must be 0.
	_reservedBit6 Type = 1 << 6
	// CHSize marks a short final chunk; an 8-byte raw_len trailer follows payload.
	CHSize Type = 1 << 7
)

// Adaptive sub-codec identifiers, stamped into flag bits 4-5.
const (
	AdaptiveNone  = 0
	AdaptiveBzip2 = 1
	AdaptiveLzma  = 2
	AdaptivePpmd  = 3
)

// WithAdaptive returns t with the adaptive sub-codec id stamped into bits 4-5.
func (t Type) WithAdaptive(id uint8) Type {
	return (t &^ Type(adaptiveMask)) | Type(id&0x3)<<adaptiveShift
}

// Adaptive extracts the adaptive sub-codec id from bits 4-5.
func (t Type) Adaptive() uint8 {
	return uint8((t & adaptiveMask) >> adaptiveShift)
}

func (t Type) Has(bit Type) bool { return t&bit != 0 }

// PreprocMask is the preprocessing type mask, byte 0 of the 9-byte
// preprocessing sub-header (spec §3).
type PreprocMask uint8

const (
	PreprocLZP        PreprocMask = 1 << 0
	PreprocDelta2      PreprocMask = 1 << 1
	PreprocCompressed PreprocMask = 1 << 2
)

// PreprocHeaderSize is the fixed size of the preprocessing sub-header.
const PreprocHeaderSize = 9

// PreprocHeader is the 9-byte sub-header present iff Type.Preproc is set.
type PreprocHeader struct {
	Mask         PreprocMask
	PreSize uint64 // size of the buffer after preprocessing, before final compression
}

// Encode writes the 9-byte wire form of h.
func (h PreprocHeader) Encode() [PreprocHeaderSize]byte {
	var out [PreprocHeaderSize]byte
	out[0] = byte(h.Mask)
	binary.BigEndian.PutUint64(out[1:], h.PreSize)
	return out
}

// DecodePreprocHeader parses the 9-byte wire form.
func DecodePreprocHeader(b []byte) PreprocHeader {
	return PreprocHeader{
		Mask:    PreprocMask(b[0]),
		PreSize: binary.BigEndian.Uint64(b[1:9]),
	}
}

// Chunk is the unit of parallelism: a contiguous slice of the plaintext
// stream, its metadata, and (once the transform stack has run) its payload.
type Chunk struct {
	ID       uint64
	RawLen   uint64
	Checksum []byte // plaintext_checksum; empty in encrypted mode
	Flags    Type
	Payload  []byte
}
