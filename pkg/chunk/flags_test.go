package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAdaptiveRoundTrip(t *testing.T) {
	var flags Type
	flags |= Compressed
	flags = flags.WithAdaptive(AdaptiveLzma)

	assert.True(t, flags.Has(Compressed))
	assert.Equal(t, uint8(AdaptiveLzma), flags.Adaptive())
}

func TestWithAdaptiveDoesNotDisturbOtherBits(t *testing.T) {
	flags := Compressed | Dedup | CHSize
	flags = flags.WithAdaptive(AdaptiveBzip2)

	assert.True(t, flags.Has(Compressed))
	assert.True(t, flags.Has(Dedup))
	assert.True(t, flags.Has(CHSize))
	assert.False(t, flags.Has(Preproc))
	assert.Equal(t, uint8(AdaptiveBzip2), flags.Adaptive())
}

func TestWithAdaptiveOverwritesPreviousID(t *testing.T) {
	flags := Type(0).WithAdaptive(AdaptiveLzma)
	flags = flags.WithAdaptive(AdaptivePpmd)
	assert.Equal(t, uint8(AdaptivePpmd), flags.Adaptive())
}

func TestPreprocHeaderRoundTrip(t *testing.T) {
	h := PreprocHeader{Mask: PreprocLZP | PreprocDelta2, PreSize: 123456789}
	enc := h.Encode()
	got := DecodePreprocHeader(enc[:])
	assert.Equal(t, h, got)
}

func TestHasOnZeroValue(t *testing.T) {
	var flags Type
	assert.False(t, flags.Has(Compressed))
	assert.False(t, flags.Has(Dedup))
}
