package store

import "errors"

// ErrKeyNotFound is returned by Remove when the key is absent from the index.
var ErrKeyNotFound = errors.New("key not found")

// ErrStoreClosed is returned when an operation is attempted after Close.
var ErrStoreClosed = errors.New("store is closed")

// ErrDirLocked is returned by Open when another process holds the data
// directory's lock file.
var ErrDirLocked = errors.New("data directory locked by another process")

// ErrCorruptedLog is returned when on-disk content disagrees with the index.
var ErrCorruptedLog = errors.New("corrupted log")
