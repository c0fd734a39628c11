package store

// Record types persisted to the log.
const (
	cmdSet    = "set"
	cmdRemove = "rm"
)

// command is the unit of change recorded in a segment. Records are marshaled
// as bare JSON objects concatenated with no separator; a streaming decoder
// recovers record boundaries, so no length prefix is written.
type command struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

func setCommand(key, value string) command {
	return command{Type: cmdSet, Key: key, Value: value}
}

func removeCommand(key string) command {
	return command{Type: cmdRemove, Key: key}
}

// Position identifies one encoded command within one segment file. Length is
// the record's encoded size, used both for re-reading the record and for
// accounting its bytes as stale once a later record supersedes it.
type Position struct {
	Segment uint64
	Offset  int64
	Length  int64
}
