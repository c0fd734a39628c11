package store

const (
	segmentExt   = ".log"
	hintFileName = "kvs.hint"
	lockFileName = "kvs.lock"
	tmpExt       = ".tmp"

	// compactionThreshold is the number of stale bytes tolerated across all
	// segments before the log is rewritten.
	compactionThreshold = 1 << 20 // 1 MiB

	readerBufSize = 64 * 1024
	writerBufSize = 64 * 1024
)
