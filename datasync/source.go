package datasync

import (
	"context"
	"errors"
	"time"
)

// ErrStreamDone is returned by Stream.Next after Stop or cancellation.
var ErrStreamDone = errors.New("datasync: stream done")

type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Document is a raw backend record.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Snapshot is one delivery of a watched collection: the full current document
// set and the changes since the previous delivery on the same stream.
type Snapshot struct {
	Docs     []Document
	Changes  []Change
	ReadTime time.Time
}

// Stream yields snapshots in backend emission order until stopped.
type Stream interface {
	Next() (Snapshot, error)
	Stop()
}

// Source opens live streams over named collections.
type Source interface {
	Ready() bool
	Subscribe(ctx context.Context, collection string) (Stream, error)
}
