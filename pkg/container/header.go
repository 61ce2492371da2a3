// Package container implements the file header, chunk frame, and trailer
// codec of spec §4.1: the only place in the tool that knows the container's
// exact byte layout. Everything else works with typed Go values.
package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gburd/pcompress-go/pkg/config"
)

// FixedHeaderSize is the size of the header's non-crypto-extended portion.
const FixedHeaderSize = 24

// Header is the file header written once at byte 0 (spec §4.1).
type Header struct {
	Algo      string // 8 bytes, space-padded
	Version   uint16
	Flags     uint16
	ChunkSize int64
	Level     int32

	// Present iff a crypto algorithm is selected in Flags.
	Salt  []byte
	Nonce []byte
	KeyLen uint32
}

// Checksum extracts the checksum algorithm id from Flags.
func (h Header) Checksum() config.ChecksumAlgo {
	return config.ChecksumAlgo(h.Flags & config.ChecksumMask)
}

// CryptoAlgo extracts the crypto algorithm id from Flags (0 if none).
func (h Header) CryptoAlgo() config.CryptoAlgo {
	switch {
	case h.Flags&uint16(config.CryptoAES) != 0:
		return config.CryptoAES
	case h.Flags&uint16(config.CryptoSalsa20) != 0:
		return config.CryptoSalsa20
	default:
		return config.CryptoNone
	}
}

// Encrypted reports whether this header selects an encryption algorithm.
func (h Header) Encrypted() bool { return h.CryptoAlgo() != config.CryptoNone }

func padAlgo(algo string) ([8]byte, error) {
	var out [8]byte
	if len(algo) > 8 {
		return out, fmt.Errorf("container: algo tag %q longer than 8 bytes", algo)
	}
	copy(out[:], algo)
	for i := len(algo); i < 8; i++ {
		out[i] = ' '
	}
	return out, nil
}

// EncodeFixed serializes the offset-0..24 portion of the header (everything
// the header MAC/CRC covers up through the level field, spec §4.3).
func (h Header) EncodeFixed() ([]byte, error) {
	algoBytes, err := padAlgo(h.Algo)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, FixedHeaderSize)
	copy(buf[0:8], algoBytes[:])
	binary.BigEndian.PutUint16(buf[8:10], h.Version)
	binary.BigEndian.PutUint16(buf[10:12], h.Flags)
	binary.BigEndian.PutUint64(buf[12:20], uint64(h.ChunkSize))
	binary.BigEndian.PutUint32(buf[20:24], uint32(h.Level))
	return buf, nil
}

// serializeGroups byte-swaps each 8-byte group of b in place, matching the
// source's "serialize_checksum" normalization applied to salt and nonce.
// Symmetric: calling it twice restores the original bytes.
func serializeGroups(b []byte) {
	for off := 0; off+8 <= len(b); off += 8 {
		g := b[off : off+8]
		for i, j := 0, 7; i < j; i, j = i+1, j-1 {
			g[i], g[j] = g[j], g[i]
		}
	}
	// Trailing partial group, if any, is left as-is: salt/nonce lengths
	// used by this tool (saltlen 16/32, nonce 8/24) are always multiples of 8.
}

// EncodeCryptoExt serializes the saltlen|salt|nonce|keylen extension,
// present iff h.Encrypted().
func (h Header) EncodeCryptoExt() []byte {
	if !h.Encrypted() {
		return nil
	}
	salt := append([]byte(nil), h.Salt...)
	nonce := append([]byte(nil), h.Nonce...)
	serializeGroups(salt)
	serializeGroups(nonce)

	buf := make([]byte, 4+len(salt)+len(nonce)+4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(salt)))
	copy(buf[4:], salt)
	copy(buf[4+len(salt):], nonce)
	binary.BigEndian.PutUint32(buf[4+len(salt)+len(nonce):], h.KeyLen)
	return buf
}

// Encode writes the full header (fixed + optional crypto extension) to w,
// followed by the trailer tag computed by tagger over the header bytes.
func Encode(w io.Writer, h Header, tagSize int, computeTag func([]byte) []byte) error {
	fixed, err := h.EncodeFixed()
	if err != nil {
		return err
	}
	full := fixed
	if h.Encrypted() {
		full = append(full, h.EncodeCryptoExt()...)
	}
	if _, err := w.Write(full); err != nil {
		return fmt.Errorf("container: write header: %w", err)
	}
	if tagSize > 0 {
		tag := computeTag(full)
		if len(tag) != tagSize {
			return fmt.Errorf("container: header tag size mismatch: got %d want %d", len(tag), tagSize)
		}
		if _, err := w.Write(tag); err != nil {
			return fmt.Errorf("container: write header tag: %w", err)
		}
	}
	return nil
}

// DecodeFixed parses the 24-byte fixed portion from r.
func DecodeFixed(r io.Reader) (Header, []byte, error) {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, nil, fmt.Errorf("container: short read on header: %w", err)
	}
	h := Header{
		Algo:      trimAlgo(buf[0:8]),
		Version:   binary.BigEndian.Uint16(buf[8:10]),
		Flags:     binary.BigEndian.Uint16(buf[10:12]),
		ChunkSize: int64(binary.BigEndian.Uint64(buf[12:20])),
		Level:     int32(binary.BigEndian.Uint32(buf[20:24])),
	}
	return h, buf, nil
}

func trimAlgo(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// DecodeCryptoExt parses the saltlen|salt|nonce|keylen extension for a
// header already known to be Encrypted(), appending its bytes to rawHeader.
func DecodeCryptoExt(r io.Reader, h *Header, nonceLen int, rawHeader []byte) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return rawHeader, fmt.Errorf("container: short read on saltlen: %w", err)
	}
	saltLen := binary.BigEndian.Uint32(lenBuf[:])
	rawHeader = append(rawHeader, lenBuf[:]...)

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(r, salt); err != nil {
		return rawHeader, fmt.Errorf("container: short read on salt: %w", err)
	}
	rawHeader = append(rawHeader, salt...)
	serializeGroups(salt)
	h.Salt = salt

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return rawHeader, fmt.Errorf("container: short read on nonce: %w", err)
	}
	rawHeader = append(rawHeader, nonce...)
	serializeGroups(nonce)
	h.Nonce = nonce

	var keyLenBuf [4]byte
	if _, err := io.ReadFull(r, keyLenBuf[:]); err != nil {
		return rawHeader, fmt.Errorf("container: short read on keylen: %w", err)
	}
	h.KeyLen = binary.BigEndian.Uint32(keyLenBuf[:])
	rawHeader = append(rawHeader, keyLenBuf[:]...)

	return rawHeader, nil
}
