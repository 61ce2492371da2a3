package dedup

import "errors"

var (
	errShortIndex  = errors.New("dedup: index table truncated")
	errBadBlockRef = errors.New("dedup: index references unknown block id")
	errShortBlocks = errors.New("dedup: block pool truncated")
)
