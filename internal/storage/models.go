package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Learning log names used as the archive's log column.
const (
	LogSuccessful  = "successful"
	LogFailed      = "failed"
	LogCorrections = "corrections"
)

// ArchivedEntry is a learning log entry that was moved out of the live
// profile document by the retention policy.
type ArchivedEntry struct {
	ID         string
	Log        string
	CreatedAt  time.Time
	Message    string
	Intent     string
	Success    bool
	Feedback   string
	ArchivedAt time.Time
}

// ChatTurn is one message of the chat transcript.
type ChatTurn struct {
	ID         string
	CreatedAt  time.Time
	Role       string // "user" or "assistant"
	Content    string
	Model      string
	ResponseMS int64
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
