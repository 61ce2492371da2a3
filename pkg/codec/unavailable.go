package codec

// unavailableCodec models a codec named by spec §1/§6 for which no Go
// library exists anywhere in the retrieved corpus: bzip2 (write path),
// ppmd, lzfx, libbsc. Spec §1 explicitly scopes all codecs as "external
// collaborators, interfaces only"; this type is that interface boundary
// made concrete rather than a fabricated implementation.
type unavailableCodec struct {
	tag string
}

func init() {
	for _, tag := range []string{"bzip2", "ppmd", "lzfx", "libbsc"} {
		register(unavailableCodec{tag: tag})
	}
}

func (c unavailableCodec) Tag() string { return c.tag }

func (c unavailableCodec) Compress(in []byte, level int) ([]byte, error) {
	return nil, ErrCodecUnavailable
}

func (c unavailableCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	return nil, ErrCodecUnavailable
}

func (c unavailableCodec) Props(level int, chunkSize int64) Props {
	return Props{}
}
