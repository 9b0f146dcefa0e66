package client

import (
	"fmt"
)

// SubmissionError reports a rejected one-shot request (prompt submit or file
// upload): either the transport failed or the backend answered non-2xx.
// The client never retries; the caller decides what to do next.
type SubmissionError struct {
	Op         string
	StatusCode int // 0 when the transport failed before a response arrived
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
