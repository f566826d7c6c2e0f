package retrieval

import (
	"fmt"
	"time"
)

// Status is the terminal state of a retrieval.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotPresent
	StatusIncomplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotPresent:
		return "not_present"
	case StatusIncomplete:
		return "incomplete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what Retrieve hands back to the chat layer.
//
// Success carries Record. Incomplete carries BytesRead and Reason and has
// Kind == KindIncomplete. Failed carries Kind and Err. NotPresent carries
// Detail when the decoder found a malformed metadata block.
type Outcome struct {
	Status Status
	Record *MetadataRecord

	Kind   ErrorKind
	Err    error
	Reason string
	Detail string

	RetrievalID string
	BytesRead   uint64
	Cycles      int
	Attempts    int
	Windows     []ByteWindow
	Elapsed     time.Duration
}

func (o *Outcome) String() string {
	switch o.Status {
	case StatusSuccess:
		return fmt.Sprintf("success: %d tags from %d bytes", o.Record.Len(), o.BytesRead)
	case StatusNotPresent:
		if o.Detail != "" {
			return "not present: " + o.Detail
		}
		return "not present"
	case StatusIncomplete:
		return fmt.Sprintf("incomplete after %d bytes: %s", o.BytesRead, o.Reason)
	default:
		return fmt.Sprintf("failed (%s): %v", o.Kind, o.Err)
	}
}

// Failed reports whether the retrieval ended without a decoder verdict.
func (o *Outcome) Failed() bool {
	return o.Status == StatusFailed || o.Status == StatusIncomplete
}
