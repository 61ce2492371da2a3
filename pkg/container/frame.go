package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gburd/pcompress-go/pkg/chunk"
)

// FrameLayout fixes the cksum_bytes/mac_bytes widths for one container, so
// every frame in it has the same shape (spec §4.1).
type FrameLayout struct {
	CksumBytes int
	MACBytes   int
}

// headerLen is the fixed-width prefix before the payload: len_cmp(8) +
// checksum + mac + flags(1).
func (l FrameLayout) headerLen() int { return 8 + l.CksumBytes + l.MACBytes + 1 }

// Encode serializes one chunk frame. c.Payload is the fully-transformed
// payload; tagger computes the MAC/CRC over the frame with the slot zeroed
// (spec §4.2 step 9). Returns the full frame bytes, MAC slot included.
func (l FrameLayout) Encode(c chunk.Chunk, tagger func(frameWithZeroedMAC []byte) []byte) ([]byte, error) {
	if len(c.Checksum) != l.CksumBytes {
		return nil, fmt.Errorf("container: checksum length %d, want %d", len(c.Checksum), l.CksumBytes)
	}
	chsize := c.Flags.Has(chunk.CHSize)
	total := l.headerLen() + len(c.Payload)
	if chsize {
		total += 8
	}
	buf := make([]byte, total)

	binary.BigEndian.PutUint64(buf[0:8], uint64(len(c.Payload)))
	off := 8
	copy(buf[off:off+l.CksumBytes], c.Checksum)
	off += l.CksumBytes
	macOff := off // MAC slot stays zero for now
	off += l.MACBytes
	buf[off] = byte(c.Flags)
	off++
	copy(buf[off:], c.Payload)
	off += len(c.Payload)
	if chsize {
		binary.BigEndian.PutUint64(buf[off:off+8], c.RawLen)
	}

	tag := tagger(buf)
	if len(tag) != l.MACBytes {
		return nil, fmt.Errorf("container: mac tag length %d, want %d", len(tag), l.MACBytes)
	}
	copy(buf[macOff:macOff+l.MACBytes], tag)
	return buf, nil
}

// DecodedFrame is a parsed chunk frame prior to integrity verification.
type DecodedFrame struct {
	LenCmp   uint64
	Checksum []byte
	MAC      []byte
	Flags    chunk.Type
	Payload  []byte
	RawLen   uint64 // valid iff Flags.Has(chunk.CHSize)

	// Raw is the full frame with the MAC slot zeroed, ready for tag
	// verification.
	Raw []byte
}

// DecodeOne reads one chunk frame from r. lenCmp==0 signals the trailer
// (spec §4.1): callers must check DecodedFrame.LenCmp before touching the
// other fields.
func (l FrameLayout) DecodeOne(r io.Reader) (DecodedFrame, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return DecodedFrame{}, fmt.Errorf("container: short read on frame length: %w", err)
	}
	lenCmp := binary.BigEndian.Uint64(lenBuf[:])
	if lenCmp == 0 {
		return DecodedFrame{LenCmp: 0}, nil
	}

	rest := make([]byte, l.CksumBytes+l.MACBytes+1)
	if _, err := io.ReadFull(r, rest); err != nil {
		return DecodedFrame{}, fmt.Errorf("container: short read on frame header: %w", err)
	}
	cksum := append([]byte(nil), rest[:l.CksumBytes]...)
	mac := append([]byte(nil), rest[l.CksumBytes:l.CksumBytes+l.MACBytes]...)
	flags := chunk.Type(rest[l.CksumBytes+l.MACBytes])

	payload := make([]byte, lenCmp)
	if _, err := io.ReadFull(r, payload); err != nil {
		return DecodedFrame{}, fmt.Errorf("container: short read on payload: %w", err)
	}

	var rawLen uint64
	var trailer []byte
	if flags.Has(chunk.CHSize) {
		var rb [8]byte
		if _, err := io.ReadFull(r, rb[:]); err != nil {
			return DecodedFrame{}, fmt.Errorf("container: short read on raw_len trailer: %w", err)
		}
		rawLen = binary.BigEndian.Uint64(rb[:])
		trailer = rb[:]
	}

	// Reconstruct the zeroed-MAC-slot frame for tag verification.
	raw := make([]byte, 0, len(lenBuf)+len(rest)+len(payload)+len(trailer))
	raw = append(raw, lenBuf[:]...)
	raw = append(raw, rest[:l.CksumBytes]...)
	raw = append(raw, make([]byte, l.MACBytes)...)
	raw = append(raw, byte(flags))
	raw = append(raw, payload...)
	raw = append(raw, trailer...)

	return DecodedFrame{
		LenCmp:   lenCmp,
		Checksum: cksum,
		MAC:      mac,
		Flags:    flags,
		Payload:  payload,
		RawLen:   rawLen,
		Raw:      raw,
	}, nil
}

// EncodeTrailer writes the zero-length trailer frame that terminates the
// stream (spec §4.1, §8 "trailer law").
func EncodeTrailer(w io.Writer) error {
	var zero [8]byte
	_, err := w.Write(zero[:])
	return err
}
