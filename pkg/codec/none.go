package codec

// noneCodec is the explicit "store verbatim" algorithm (-c none). It also
// models what every other codec falls back to when compression does not
// shrink the chunk (spec §4.2 step 5): returning len(out) == len(in) so the
// pipeline always treats it as "did not help" and clears Compressed.
type noneCodec struct{}

func init() { register(noneCodec{}) }

func (noneCodec) Tag() string { return "none" }

func (noneCodec) Compress(in []byte, level int) ([]byte, error) {
	out := make([]byte, len(in))
	copy(out, in)
	return out, nil
}

func (noneCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	out := make([]byte, len(in))
	copy(out, in)
	return out, nil
}

func (noneCodec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 0, Delta2Span: 0}
}
