// Package jobqueue implements the job-descriptor contract and dispatcher
// collaborator the block cache returns work to (spec.md §6, §1 — the job
// queue / thread pool itself is out of scope for the cache's algorithms,
// but its contract is part of the cache's external boundary).
package jobqueue

import (
	"github.com/google/uuid"
)

// Action identifies what a Job asks the storage layer to do.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionHash
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Result carries the outcome of a job back to its originator.
type Result struct {
	BytesTransferred int
	Err              error
}

// CompletionFunc is invoked exactly once when a job finishes, successfully
// or not.
type CompletionFunc func(Result)

// Job is the descriptor spec.md §6 requires: the action, the storage and
// piece it targets, an offset/length, an optional write payload, and a
// completion callback.
type Job struct {
	ID      string
	Action  Action
	Storage string
	Piece   int
	Offset  int64
	Length  int64

	// Payload is the write payload for ActionWrite jobs. Ownership
	// transfers to the cache once attached via the write path (spec.md
	// §4.5): the job keeps only this handle, not the backing buffer.
	Payload []byte

	OnComplete CompletionFunc
}

// NewJob mints a job with a fresh identifier, mirroring the teacher's use
// of github.com/google/uuid for request tracing.
func NewJob(action Action, storage string, piece int, offset, length int64) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Action:  action,
		Storage: storage,
		Piece:   piece,
		Offset:  offset,
		Length:  length,
	}
}

// Complete invokes the completion callback, if any, with the given result.
func (j *Job) Complete(res Result) {
	if j.OnComplete != nil {
		j.OnComplete(res)
	}
}
