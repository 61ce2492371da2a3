package preprocess

// Delta2Encode applies a byte-wise delta filter with the given stride
// ("span"): out[i] = in[i] - in[i-span] (mod 256) for i >= span, in[i]
// copied verbatim otherwise. This is the second preprocessing stage (spec
// §4.2 step 4, run only "iff codec's delta2_span>0"), useful ahead of a
// general-purpose compressor on structured binary data (fixed-width
// records, image rows, audio frames) where a fixed-distance delta exposes
// redundancy a byte-oriented codec alone would miss.
func Delta2Encode(in []byte, span int) []byte {
	if span <= 0 || span >= len(in) {
		out := make([]byte, len(in))
		copy(out, in)
		return out
	}
	out := make([]byte, len(in))
	copy(out[:span], in[:span])
	for i := span; i < len(in); i++ {
		out[i] = in[i] - in[i-span]
	}
	return out
}

// Delta2Decode reverses Delta2Encode.
func Delta2Decode(in []byte, span int) []byte {
	if span <= 0 || span >= len(in) {
		out := make([]byte, len(in))
		copy(out, in)
		return out
	}
	out := make([]byte, len(in))
	copy(out[:span], in[:span])
	for i := span; i < len(in); i++ {
		out[i] = in[i] + out[i-span]
	}
	return out
}
